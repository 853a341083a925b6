package portal

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-errors/errors"
	"github.com/gorilla/schema"
)

const maxConnectBody = 16 << 10

type connectRequest struct {
	Ssid     string `json:"ssid" schema:"ssid"`
	Password string `json:"password" schema:"password"`
}

type connectResponse struct {
	Ssid string `json:"ssid"`
}

func (p *Portal) handlePostConnect() http.HandlerFunc {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxConnectBody)

		req := connectRequest{}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/json" {
			err := json.NewDecoder(r.Body).Decode(&req)
			if err != nil {
				p.jsonError(w, "Could not decode request: "+err.Error(), http.StatusBadRequest)
				return
			}
		} else {
			err := r.ParseForm()
			if err != nil {
				p.jsonError(w, "Could not parse form: "+err.Error(), http.StatusBadRequest)
				return
			}

			err = decoder.Decode(&req, r.PostForm)
			if err != nil {
				p.jsonError(w, "Could not decode form: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		p.log.Infof("Received credentials for %v with password %v", req.Ssid, strings.Repeat("*", len(req.Password)))

		err := p.store.Submit(&Submission{
			Ssid:     req.Ssid,
			Password: req.Password,
		})

		switch {
		case err == nil:
			p.jsonResponse(w, &connectResponse{Ssid: req.Ssid}, http.StatusOK)
		case errors.Is(err, ErrUnknownSsid):
			p.log.Warnf("Rejected credentials for unknown network %v", req.Ssid)
			p.jsonError(w, "Network "+req.Ssid+" was not found in the latest scan", http.StatusBadRequest)
		case errors.Is(err, ErrNotAccepting):
			p.jsonError(w, "Already connecting to a network", http.StatusConflict)
		default:
			p.jsonError(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
