package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"nocaflow/pkg/api/handlers"
	"nocaflow/pkg/chat"
	"nocaflow/pkg/config"
	"nocaflow/pkg/guest"
	"nocaflow/pkg/subscribe"
)

// Deps bundles the services the HTTP surface dispatches into.
type Deps struct {
	Chat    *chat.Service
	Hub     *subscribe.Hub
	Guest   *guest.Source
	Mail    http.Handler
	Locales config.LocaleConfig
}

// Handler builds the /v1 router: conversation list and stream, message
// CRUD, attachments, guest mode and the mail relay.
func Handler(d Deps) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	handlers.Register(v1, handlers.Deps{
		Chat:    d.Chat,
		Hub:     d.Hub,
		Guest:   d.Guest,
		Locales: d.Locales,
	})
	if d.Mail != nil {
		v1.Handle("/mail", d.Mail).Methods(http.MethodPost)
	}
	return r
}
