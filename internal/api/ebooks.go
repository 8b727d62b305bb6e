package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidps79/backend-grupo-13/internal/catalog"
	"github.com/davidps79/backend-grupo-13/internal/database"
)

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

func (s *Server) handleCreateEbook(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := Authorize(principal, RoleAuthor, RoleAdmin); err != nil {
		s.respondError(w, err)
		return
	}

	var req struct {
		Title     string  `json:"title"`
		Publisher string  `json:"publisher"`
		Author    string  `json:"author"`
		Overview  string  `json:"overview"`
		Price     float64 `json:"price"`
		Stock     int     `json:"stock"`
		FileData  string  `json:"fileData"`
		Category  string  `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fileData, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "fileData must be base64")
		return
	}

	ebook, err := s.catalog.Create(r.Context(), catalog.CreateEbook{
		Title:     req.Title,
		Publisher: req.Publisher,
		AuthorID:  req.Author,
		Overview:  req.Overview,
		Price:     decimal.NewFromFloat(req.Price),
		Stock:     req.Stock,
		FileData:  fileData,
		Category:  req.Category,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ebook)
}

func (s *Server) handleListEbooks(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	ebooks, err := s.catalog.FindAll(r.Context(), page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleCountEbooks(w http.ResponseWriter, r *http.Request) {
	total, err := s.catalog.Count(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"amount": total})
}

func (s *Server) handleEbookInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid ebook id")
		return
	}

	ebook, err := s.catalog.FindByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebook)
}

// handleVisualizeEbook ships the content itself, base64-encoded, next to
// the title.
func (s *Server) handleVisualizeEbook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid ebook id")
		return
	}

	ebook, err := s.catalog.FindByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"title":    ebook.Title,
		"fileData": base64.StdEncoding.EncodeToString(ebook.FileData),
	})
}

func (s *Server) handleUpdateEbook(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := Authorize(principal, RoleAuthor, RoleAdmin); err != nil {
		s.respondError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid ebook id")
		return
	}

	var req struct {
		Title     *string  `json:"title"`
		Publisher *string  `json:"publisher"`
		Overview  *string  `json:"overview"`
		Price     *float64 `json:"price"`
		Stock     *int     `json:"stock"`
		FileData  *string  `json:"fileData"`
		Category  *string  `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := catalog.UpdateEbook{
		Title:     req.Title,
		Publisher: req.Publisher,
		Overview:  req.Overview,
		Stock:     req.Stock,
		Category:  req.Category,
	}
	if req.Price != nil {
		price := decimal.NewFromFloat(*req.Price)
		fields.Price = &price
	}
	if req.FileData != nil {
		fileData, err := base64.StdEncoding.DecodeString(*req.FileData)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "fileData must be base64")
			return
		}
		fields.FileData = fileData
	}

	ebook, err := s.catalog.Update(r.Context(), id, fields)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebook)
}

func (s *Server) handleRemoveEbook(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := Authorize(principal, RoleAuthor, RoleAdmin); err != nil {
		s.respondError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid ebook id")
		return
	}

	affected, err := s.catalog.Remove(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if affected == 0 {
		s.respondError(w, database.ErrEbookNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	ebookID, err := pathID(r, "ebookId")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid ebook id")
		return
	}

	var req struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	score, err := s.catalog.AddVote(r.Context(), principal.UserID, ebookID, decimal.NewFromFloat(req.Value))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{"vote": score})
}

func (s *Server) handleAssignEbook(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := Authorize(principal, RoleAdmin); err != nil {
		s.respondError(w, err)
		return
	}

	var req struct {
		UserID  uuid.UUID `json:"userId"`
		EbookID uuid.UUID `json:"ebookId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entitlement, err := s.ownership.Assign(r.Context(), req.UserID, req.EbookID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entitlement)
}

func (s *Server) handleMyBooks(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	reader, err := s.identity.GetReaderByUser(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	page, limit := pageParams(r)
	ebooks, err := s.ownership.FindAllEbooksByReader(r.Context(), reader.ID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleBooksByReader(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := Authorize(principal, RoleAdmin); err != nil {
		s.respondError(w, err)
		return
	}

	readerID, err := pathID(r, "readerId")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid reader id")
		return
	}

	page, limit := pageParams(r)
	ebooks, err := s.ownership.FindAllEbooksByReader(r.Context(), readerID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleListByCategory(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	ebooks, err := s.catalog.FindByCategory(r.Context(), chi.URLParam(r, "category"), page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleListByAuthor(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "authorId")
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid author id")
		return
	}

	page, limit := pageParams(r)
	ebooks, err := s.catalog.FindByAuthor(r.Context(), authorID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleSearchByTitle(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	ebooks, err := s.catalog.SearchByTitle(r.Context(), chi.URLParam(r, "keyword"), page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

// handleListSorted sorts the catalog by price; the path parameter keeps
// the original convention of 1 for ascending, anything else descending.
func (s *Server) handleListSorted(w http.ResponseWriter, r *http.Request) {
	orderParam, _ := strconv.Atoi(chi.URLParam(r, "order"))
	page, limit := pageParams(r)
	ebooks, err := s.catalog.FindAllSorted(r.Context(), orderParam == 1, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	reader, err := s.identity.GetReaderByUser(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	page, limit := pageParams(r)
	ebooks, err := s.wishlist.FindByReader(r.Context(), reader.ID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ebooks)
}

func (s *Server) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req struct {
		EbookID uuid.UUID `json:"ebookId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wish, err := s.wishlist.Add(r.Context(), principal.UserID, req.EbookID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wish)
}

func (s *Server) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req struct {
		EbookID uuid.UUID `json:"ebookId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.wishlist.Remove(r.Context(), principal.UserID, req.EbookID); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"affected": 1})
}
