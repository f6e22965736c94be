package swagger

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

const SpecPath = "/openapi.json"

// ServeSwaggerJSON serves the loaded contract as JSON.
func ServeSwaggerJSON(spec *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS off for docs
		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// Mount registers the JSON contract and the Swagger UI on r.
func Mount(r chi.Router, spec *openapi3.T) {
	r.Get(SpecPath, ServeSwaggerJSON(spec))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(SpecPath)))
}
