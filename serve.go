package main

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	scalargo "github.com/bdpiprava/scalar-go"
	"github.com/spf13/cobra"

	"gpu-hunter/pkg/api"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/output"
	"gpu-hunter/pkg/rating"
)

// resultsPath is the file the handlers read. It is never written here.
var resultsPath string

var servePort string

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port <port>]",
	Short: "Serves the results of the last run as a read-only JSON API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Serve.Port
		if servePort != "" {
			port = servePort
		}
		resultsPath = cfg.Output

		http.HandleFunc("/", rootHandler)

		ip := GetOutboundIP()
		if ip != nil {
			fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), port)
		} else {
			fmt.Println("Could not determine local IP address.")
		}
		fmt.Printf("Access URL: http://localhost:%s/deals\n", port)
		fmt.Printf("API Docs: http://localhost:%s/\n", port)
		log.Printf("Serving results from %s", resultsPath)

		server := &http.Server{
			Addr:              ":" + port,
			Handler:           nil,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		return server.ListenAndServe()
	},
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimRight(r.URL.Path, "/") {
	case "/deals":
		dealsHandler(w, r)
		return
	case "/deals/stats":
		statsHandler(w, r)
		return
	}

	if r.URL.Path != "/" {
		api.WriteNotFound(w, "Unknown path. Available: /deals, /deals/stats", r.URL.Path)
		return
	}

	// Serve Scalar docs on root path
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir("./docs"),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("GPU Deal Hunter API"),
		),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}

// loadResults reads the results file, answering the request itself on
// failure.
func loadResults(w http.ResponseWriter, r *http.Request) ([]models.DealResult, bool) {
	results, err := output.ReadJSON(resultsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			api.WriteNotFound(w, "No results yet. Run `gpu-hunter run` first.", r.URL.Path)
			return nil, false
		}
		log.Printf("Error reading %s: %v", resultsPath, err)
		api.WriteInternalServerError(w, err, r.URL.Path)
		return nil, false
	}
	return results, true
}

// dealsHandler serves GET /deals?min_rating=&max_price=&source=
func dealsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}

	q := r.URL.Query()
	minRating, err := api.IntParam(q, "min_rating", rating.Min, rating.Max)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}
	maxPrice, err := api.FloatParam(q, "max_price")
	if err != nil {
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}
	source := strings.ToLower(strings.TrimSpace(q.Get("source")))
	if source != "" && source != models.SourceVinted && source != models.SourceLeboncoin {
		api.WriteBadRequest(w, "Source not supported. Available: vinted, leboncoin", r.URL.Path)
		return
	}

	results, ok := loadResults(w, r)
	if !ok {
		return
	}

	filter := output.Filter{MinRating: minRating, MaxPrice: maxPrice, Source: source}
	api.WriteJSON(w, r, filter.Apply(results))
}

// statsHandler serves GET /deals/stats
func statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}

	results, ok := loadResults(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, r, output.ComputeStats(results))
}
