package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/davidps79/backend-grupo-13/internal/cart"
	"github.com/davidps79/backend-grupo-13/internal/catalog"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/order"
	"github.com/davidps79/backend-grupo-13/internal/ownership"
	"github.com/davidps79/backend-grupo-13/internal/wishlist"
)

// Server wires the services to the HTTP surface.
type Server struct {
	catalog   catalog.Service
	ownership ownership.Registry
	wishlist  wishlist.Service
	cart      cart.Service
	orders    order.Engine
	identity  identity.Lookup
	log       zerolog.Logger
}

func NewServer(catalogSvc catalog.Service, registry ownership.Registry, wishlistSvc wishlist.Service, cartSvc cart.Service, engine order.Engine, lookup identity.Lookup, log zerolog.Logger) *Server {
	return &Server{
		catalog:   catalogSvc,
		ownership: registry,
		wishlist:  wishlistSvc,
		cart:      cartSvc,
		orders:    engine,
		identity:  lookup,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// Router builds the dispatch table. Static segments are registered before
// the /ebooks/{readerId} catch-all so chi resolves them first.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/ebooks", func(r chi.Router) {
		r.Post("/", s.handleCreateEbook)
		r.Get("/", s.handleListEbooks)
		r.Get("/amount", s.handleCountEbooks)
		r.Get("/info/{id}", s.handleEbookInfo)
		r.Get("/visualize/{id}", s.handleVisualizeEbook)
		r.Patch("/visualize/{id}", s.handleUpdateEbook)
		r.Post("/vote/{ebookId}", s.handleVote)
		r.Post("/ebookReader", s.handleAssignEbook)
		r.Get("/mybooks", s.handleMyBooks)
		r.Get("/category/{category}", s.handleListByCategory)
		r.Get("/author/{authorId}", s.handleListByAuthor)
		r.Get("/search/{keyword}", s.handleSearchByTitle)
		r.Get("/sorted/{order}", s.handleListSorted)
		r.Get("/wishlist", s.handleWishlist)
		r.Post("/wishlist", s.handleAddToWishlist)
		r.Delete("/wishlist", s.handleRemoveFromWishlist)
		r.Get("/{readerId}", s.handleBooksByReader)
		r.Delete("/{id}", s.handleRemoveEbook)
	})

	r.Route("/order", func(r chi.Router) {
		r.Post("/buy", s.handleBuy)
	})

	r.Post("/payment/callback", s.handlePaymentCallback)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.handleCartItems)
		r.Post("/", s.handleAddToCart)
		r.Delete("/{ebookId}", s.handleRemoveFromCart)
		r.Post("/checkout", s.handleCheckoutCart)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
