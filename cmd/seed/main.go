// Seeds the catalog with a small fixture set for local development.
package main

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidps79/backend-grupo-13/internal/config"
	"github.com/davidps79/backend-grupo-13/internal/database"
)

type seedEbook struct {
	title     string
	publisher string
	overview  string
	price     string
	stock     int
	category  string
}

var fixtures = []seedEbook{
	{"El Enigma del Tiempo", "Editorial Horizonte", "Una aventura en el espacio-tiempo que desafía las leyes de la física.", "9.99", 25, "Ciencia Ficción"},
	{"Los Secretos de la Sabiduría", "Editorial Luz", "Un compendio de conocimiento antiguo y sabiduría práctica para la vida moderna.", "7.49", 40, "Autoayuda"},
	{"La Montaña del Alma", "Editorial Raíces", "Un viaje espiritual por paisajes montañosos y la búsqueda de la paz interior.", "6.99", 32, "Narrativa"},
	{"Los Viajes de Aurora", "Editorial Viento Sur", "Las aventuras de una joven exploradora en lugares exóticos alrededor del mundo.", "8.99", 28, "Aventura"},
	{"El Arte de la Caligrafía", "Editorial Estilo", "Una guía completa sobre la práctica y técnicas de la caligrafía.", "5.99", 15, "Arte"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	for _, fixture := range fixtures {
		price, err := decimal.NewFromString(fixture.price)
		if err != nil {
			log.Fatalf("Parse price for %q: %v", fixture.title, err)
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO ebooks (id, title, publisher, author_id, overview, price, stock, category, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			 ON CONFLICT DO NOTHING`,
			uuid.New(), fixture.title, fixture.publisher, uuid.New(), fixture.overview, price, fixture.stock, fixture.category)
		if err != nil {
			log.Fatalf("Seed %q: %v", fixture.title, err)
		}
	}

	log.Printf("Seeded %d ebooks", len(fixtures))
}
