package places

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"

	"wildmap/app"
)

const qrSize = 256

// ShareURL returns a link that reopens the map at the open popup of s, with
// its current query, on the host the request came in on. Without a session
// the lat, lng and q parameters of the request are used as given. It fails
// if the session cannot be read, e.g. because it was closed.
func ShareURL(r *http.Request, s *Session) (string, error) {
	v := url.Values{}
	if s != nil {
		err := s.Do(r.Context(), func() {
			if q := s.Store.Query(); q != "" {
				v.Set("q", q)
			}
			if m := s.Map.OpenMarker(); m != nil {
				v.Set("lat", trimFloat(m.Lat))
				v.Set("lng", trimFloat(m.Lng))
			}
		})
		if err != nil {
			return "", fmt.Errorf("read session %s: %w", s.ID, err)
		}
	} else {
		in := r.URL.Query()
		for _, k := range []string{"q", "lat", "lng"} {
			if val := in.Get(k); val != "" {
				v.Set(k, val)
			}
		}
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: "/", RawQuery: v.Encode()}
	return u.String(), nil
}

// QRHandler serves GET /places/qr as a PNG QR code of the share link
func QRHandler(w http.ResponseWriter, r *http.Request) {
	var s *Session
	if id := r.URL.Query().Get("session"); id != "" {
		var ok bool
		if s, ok = Get(id); !ok {
			app.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
	}

	link, err := ShareURL(r, s)
	if errors.Is(err, ErrClosed) {
		app.RespondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		app.Log("places", "Share link: %v", err)
		app.ServerError(w, r, "Could not create share link")
		return
	}

	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		app.Log("places", "QR encode: %v", err)
		app.ServerError(w, r, "Could not create QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("X-Share-URL", link)
	w.Write(png)
}
