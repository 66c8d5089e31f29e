package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"

	"github.com/suporte-lab/app-sub000/db"
	"github.com/suporte-lab/app-sub000/db/migrations"
	"github.com/suporte-lab/app-sub000/internal/directory"
	"github.com/suporte-lab/app-sub000/internal/geocode"
	"github.com/suporte-lab/app-sub000/internal/handlers"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.Kitchen,
	})))

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		slog.Error("POSTGRES_CONN env variable is not set")
		os.Exit(1)
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		slog.Error("cannot connect to DB", "err", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		slog.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	store := db.NewStorage(dbConn)
	dirClient := directory.NewClient(envOr("DIRECTORY_URL", "https://servicodados.ibge.gov.br/api/v1/localidades"))
	geoClient := geocode.NewClient(
		envOr("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		envOr("GOOGLE_GEOCODE_URL", "https://maps.googleapis.com/maps/api"),
		os.Getenv("GOOGLE_MAPS_API_KEY"),
	)
	h := handlers.NewHandler(store, dirClient, geoClient)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// reference data
		r.Post("/municipalities", h.CreateMunicipalityHandler)
		r.Get("/municipalities", h.ListMunicipalitiesHandler)
		r.Get("/categories", h.ListCategoriesHandler)
		// projects
		r.Post("/projects/import", h.ImportProjectsHandler)
		r.Get("/projects/template", h.ProjectTemplateHandler)
		// surveys
		r.Post("/surveys/new", h.CreateSurveyHandler)
		r.Get("/surveys", h.ListSurveysHandler)
		r.Get("/surveys/{surveyId}", h.GetSurveyHandler)
		r.Delete("/surveys/{surveyId}", h.DeleteSurveyHandler)
		r.Post("/questions/new", h.CreateQuestionHandler)
		r.Put("/surveys/{surveyId}/questions/reorder", h.ReorderQuestionsHandler)
		r.Delete("/questions/{questionId}", h.DeleteQuestionHandler)
		// researches
		r.Post("/research/new", h.CreateResearchHandler)
		r.Get("/research", h.ListResearchesHandler)
		r.Delete("/research/{researchId}", h.DeleteResearchHandler)
		r.Get("/research/{researchId}/status", h.ResearchStatusHandler)
		r.Post("/research/{researchId}/answers/import", h.ImportAnswersHandler)
		r.Get("/research/{researchId}/answers/template", h.AnswerTemplateHandler)
		// results
		r.Get("/results", h.ResultsHandler)
	})

	serverAddr := envOr("SERVER_ADDRESS", "0.0.0.0:8080")
	slog.Info("starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, r); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
