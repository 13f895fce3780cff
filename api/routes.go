package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"

	"couchsync/handlers"

	"github.com/gorilla/mux"
)

func itoa(i int) string      { return strconv.Itoa(i) }
func itoa64(i uint64) string { return strconv.FormatUint(i, 10) }

// localhostOnlyMiddleware restricts access to localhost requests only
func localhostOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		// Strip port if present
		for i := len(host) - 1; i >= 0; i-- {
			if host[i] == ':' {
				host = host[:i]
				break
			}
		}
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			http.Error(w, "Debug endpoints only accessible from localhost", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	profilesHandler *handlers.ProfilesHandler,
	progressHandler *handlers.ProgressHandler,
	partyHandler *handlers.PartyHandler,
	offlineHandler *handlers.OfflineHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Profile management
	api.HandleFunc("/users", profilesHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users", profilesHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/users", profilesHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}", profilesHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}", profilesHandler.Rename).Methods(http.MethodPatch)
	api.HandleFunc("/users/{userID}", profilesHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}", profilesHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/color", profilesHandler.SetColor).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/color", profilesHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/pin", profilesHandler.SetPIN).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/pin", profilesHandler.ClearPIN).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/pin", profilesHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/pin/verify", profilesHandler.VerifyPIN).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/pin/verify", profilesHandler.Options).Methods(http.MethodOptions)

	// Watch progress and resume
	api.HandleFunc("/users/{userID}/progress", progressHandler.ListRecent).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/progress", progressHandler.Record).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/progress", progressHandler.ClearAll).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/progress", progressHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/progress/{contentKey}", progressHandler.GetResume).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/progress/{contentKey}", progressHandler.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/progress/{contentKey}", progressHandler.Options).Methods(http.MethodOptions)

	// Offline content cache
	api.HandleFunc("/users/{userID}/offline", offlineHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/offline", offlineHandler.Cache).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/offline", offlineHandler.Clear).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/offline", offlineHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/offline/stats", offlineHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/offline/stats", offlineHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/offline/{contentKey}", offlineHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/offline/{contentKey}", offlineHandler.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/offline/{contentKey}", offlineHandler.Options).Methods(http.MethodOptions)

	// Watch parties
	api.HandleFunc("/party", partyHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/party", partyHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/party", partyHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/party/{code}", partyHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/party/{code}", partyHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/party/{code}/exists", partyHandler.Exists).Methods(http.MethodGet)
	api.HandleFunc("/party/{code}/exists", partyHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/party/{code}/join", partyHandler.Join).Methods(http.MethodPost)
	api.HandleFunc("/party/{code}/join", partyHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/party/{code}/leave", partyHandler.Leave).Methods(http.MethodPost)
	api.HandleFunc("/party/{code}/leave", partyHandler.Options).Methods(http.MethodOptions)

	// Version endpoint (public)
	versionHandler := handlers.NewVersionHandler()
	api.HandleFunc("/version", versionHandler.GetVersion).Methods(http.MethodGet, http.MethodOptions)

	// Pprof debug endpoints for profiling (localhost only)
	pprofRouter := api.PathPrefix("/debug/pprof").Subrouter()
	pprofRouter.Use(localhostOnlyMiddleware)
	pprofRouter.HandleFunc("/", pprof.Index)
	pprofRouter.HandleFunc("/cmdline", pprof.Cmdline)
	pprofRouter.HandleFunc("/profile", pprof.Profile)
	pprofRouter.HandleFunc("/symbol", pprof.Symbol)
	pprofRouter.HandleFunc("/trace", pprof.Trace)
	pprofRouter.HandleFunc("/goroutine", pprof.Handler("goroutine").ServeHTTP)
	pprofRouter.HandleFunc("/heap", pprof.Handler("heap").ServeHTTP)

	// Progress dump for diagnostics (localhost only)
	debugRouter := api.PathPrefix("/debug/progress").Subrouter()
	debugRouter.Use(localhostOnlyMiddleware)
	debugRouter.HandleFunc("", progressHandler.Dump).Methods(http.MethodGet)

	// Runtime stats endpoint (localhost only)
	runtimeRouter := api.PathPrefix("/debug/runtime").Subrouter()
	runtimeRouter.Use(localhostOnlyMiddleware)
	runtimeRouter.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{` +
			`"goroutines":` + itoa(runtime.NumGoroutine()) + `,` +
			`"heapAlloc":` + itoa64(m.HeapAlloc) + `,` +
			`"heapSys":` + itoa64(m.HeapSys) + `,` +
			`"heapObjects":` + itoa64(m.HeapObjects) + `,` +
			`"stackInuse":` + itoa64(m.StackInuse) + `,` +
			`"numGC":` + itoa(int(m.NumGC)) + `,` +
			`"lastGC":` + itoa64(m.LastGC) + `,` +
			`"numCPU":` + itoa(runtime.NumCPU()) +
			`}`))
	}).Methods(http.MethodGet)
}
