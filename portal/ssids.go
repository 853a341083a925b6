package portal

import (
	"net/http"
)

func (p *Portal) handleGetSsids() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aps, err := p.scan(r.Context())
		if err != nil {
			p.log.Errorf("Could not scan for networks: %v", err)
			p.jsonError(w, "Could not scan for networks", http.StatusInternalServerError)
			return
		}

		p.store.SetScan(aps)

		// Use literal instead of declaration so it serializes into empty json array
		ssids := []string{}
		for _, ap := range aps {
			ssids = append(ssids, ap.Ssid)
		}

		p.log.Debugf("Found %d networks", len(ssids))

		p.jsonResponse(w, ssids, http.StatusOK)
	}
}
