// internal/app/features/pages/home.go
package pages

import "net/http"

// ServeHome redirects /home to the map.
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/home/map", http.StatusSeeOther)
}

// ServeJourneys handles GET /home/journeys: every offered journey.
func (h *Handler) ServeJourneys(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PageJourneys, PageData{Title: "Journeys"})
}

// ServeMap handles GET /home/map: draw a route and offer a journey.
func (h *Handler) ServeMap(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PageMap, PageData{Title: "New journey"})
}

// ServeMyJourneys handles GET /home/my-journeys.
func (h *Handler) ServeMyJourneys(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PageMyJourneys, PageData{Title: "My journeys"})
}

// ServeQRScanner handles GET /home/qr-scanner.
func (h *Handler) ServeQRScanner(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PageQRScanner, PageData{Title: "Scan a code"})
}
