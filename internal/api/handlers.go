package api

// handlers groups the HTTP adapters of spec §4.4 and holds the App
// dependencies they close over, mirroring the corpus's per-resource
// handler structs (2lar-b2/backend2/interfaces/http/rest/handlers).
type handlers struct {
	app *App
}

func newHandlers(app *App) *handlers {
	return &handlers{app: app}
}
