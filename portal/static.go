package portal

import (
	"net/http"
	"path"
)

// handleStatic serves the portal interface. Paths that do not exist, like
// the connectivity checks of phones and laptops, are redirected to the
// index page so the captive portal shows up.
func (p *Portal) handleStatic(assets http.FileSystem) http.Handler {
	fileServer := http.FileServer(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)

		f, err := assets.Open(name)
		if err != nil && name == "/" {
			http.NotFound(w, r)
			return
		} else if err != nil {
			p.log.Debugf("Redirecting %v%v to the portal", r.Host, r.URL.Path)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		_ = f.Close()

		fileServer.ServeHTTP(w, r)
	})
}
