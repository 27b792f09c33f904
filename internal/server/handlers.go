package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cspAudit/internal/csp"
	"cspAudit/internal/fetch"
	"cspAudit/internal/output"
	"cspAudit/internal/parser"
	"cspAudit/internal/session"
	"cspAudit/internal/sitemap"
)

type pageRequest struct {
	URL string `json:"url"`
}

type violationsRequest struct {
	URL              string                `json:"url"`
	BlockedResources []csp.BlockedResource `json:"blockedResources"`
	CurrentCSP       *string               `json:"currentCSP"`
}

type sitemapRequest struct {
	SitemapURL string `json:"sitemapUrl"`
}

type urlsRequest struct {
	URLs json.RawMessage `json:"urls"`
}

type extractRequest struct {
	URLs       []string `json:"urls"`
	SitemapURL string   `json:"sitemapUrl"`
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

func (s *Server) analyzePage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, errorBody("URL is required"))
		return
	}

	result := s.analyzer.AnalyzePage(c.Request.Context(), req.URL)
	c.JSON(http.StatusOK, result)
}

func (s *Server) analyzeViolations(c *gin.Context) {
	var req violationsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, errorBody("URL is required"))
		return
	}
	if _, err := csp.ParseRaw(req.CurrentCSP); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("currentCSP is required"))
		return
	}

	fail := func(err error) {
		s.config.Logger.Warn("violation analysis failed", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to analyze CSP violations",
			"status": output.StatusError,
		})
	}
	if err := parser.ValidateURL(req.URL, s.config.AllowPrivateIPs); err != nil {
		fail(err)
		return
	}
	res, err := s.analyzer.Resources(c.Request.Context(), req.URL)
	if err != nil {
		fail(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":               req.URL,
		"currentCSP":        *req.CurrentCSP,
		"externalResources": res,
		"analysis":          csp.AnalyzeViolations(*req.CurrentCSP, res, req.BlockedResources),
		"status":            output.StatusSuccess,
	})
}

func (s *Server) processSitemap(c *gin.Context) {
	var req sitemapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SitemapURL == "" {
		c.JSON(http.StatusBadRequest, errorBody("Sitemap URL is required"))
		return
	}

	resp, err := s.fetcher.Fetch(c.Request.Context(), req.SitemapURL)
	if err != nil {
		msg := "Failed to fetch sitemap"
		if f := fetch.Classify(err); f.Kind == fetch.KindHTTP {
			msg = f.Message()
		}
		s.config.Logger.Warn("sitemap fetch failed", "url", req.SitemapURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "status": output.StatusError})
		return
	}

	urls := sitemap.ExtractURLs(string(resp.Body))
	c.JSON(http.StatusOK, gin.H{
		"urls":      urls,
		"totalUrls": len(urls),
		"status":    output.StatusSuccess,
	})
}

func (s *Server) analyzeURLs(c *gin.Context) {
	var req urlsRequest
	var urls []string
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 || json.Unmarshal(req.URLs, &urls) != nil || urls == nil {
		c.JSON(http.StatusBadRequest, errorBody("URLs array is required"))
		return
	}

	run := session.New(urls)
	defer run.Reset()
	results := s.analyzer.AnalyzeURLs(c.Request.Context(), run)

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"totalUrls": len(urls),
		"status":    output.StatusSuccess,
	})
}

func (s *Server) extractCSP(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	if s.auditor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Runtime audit is not available: no browser"})
		return
	}

	ctx := c.Request.Context()
	urls := req.URLs
	if req.SitemapURL != "" {
		loaded, err := sitemap.Load(ctx, s.fetcher, req.SitemapURL)
		if err != nil {
			s.config.Logger.Warn("sitemap load failed", "url", req.SitemapURL, "error", err)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": sitemapMessage(err)})
			return
		}
		urls = append(urls, loaded...)
	}

	var valid []string
	for _, u := range parser.DeduplicateURLs(urls) {
		if err := parser.ValidateURL(u, s.config.AllowPrivateIPs); err != nil {
			s.config.Logger.Warn("skipping URL", "url", u, "error", err)
			continue
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "URLs or sitemap URL is required"})
		return
	}

	result, err := s.auditor.Run(ctx, valid)
	if err != nil {
		s.config.Logger.Error("runtime audit failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Runtime CSP extraction failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func sitemapMessage(err error) string {
	var pe *sitemap.ParseError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if f := fetch.Classify(err); f.Kind == fetch.KindHTTP {
		return f.Message()
	}
	return "Failed to fetch sitemap"
}
