package shield

import "net/http"

// HeadToGet rewrites HEAD to GET before routing, so endpoints registered with
// r.Get() answer HEAD probes (health checks, link validators) with 200 rather
// than 405. net/http drops the response body for HEAD on its own.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
