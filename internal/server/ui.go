package server

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math/big"
	mathrand "math/rand"
	"strings"

	"github.com/ccbridge-ai/ccbridge/web"
)

const (
	nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	nonceLength   = 32
)

// newNonce returns a fresh script-source nonce: 32 characters drawn
// uniformly from the alphanumeric alphabet. It only has to be
// unguessable enough to satisfy the CSP, not cryptographically strong.
func newNonce() string {
	max := big.NewInt(int64(len(nonceAlphabet)))
	buf := make([]byte, nonceLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			buf[i] = nonceAlphabet[mathrand.Intn(len(nonceAlphabet))]
			continue
		}
		buf[i] = nonceAlphabet[n.Int64()]
	}
	return string(buf)
}

// buildCSP composes the Content-Security-Policy for the index page.
// Production scopes scripts and styles to the per-render nonce only.
// Development additionally allows the dev server origin and eval so the
// bundler's live reload client can run.
func buildCSP(nonce, devOrigin string) string {
	if devOrigin == "" {
		return fmt.Sprintf(
			"default-src 'none'; img-src 'self' data:; style-src 'nonce-%[1]s'; script-src 'nonce-%[1]s'; connect-src 'self' ws: wss:",
			nonce)
	}
	return fmt.Sprintf(
		"default-src 'none'; img-src 'self' data: %[2]s; style-src 'nonce-%[1]s' %[2]s 'unsafe-inline'; script-src 'nonce-%[1]s' %[2]s 'unsafe-eval'; connect-src 'self' %[2]s ws: wss:",
		nonce, devOrigin)
}

type manifestEntry struct {
	File string   `json:"file"`
	CSS  []string `json:"css"`
}

// uiAssets holds the resolved, content-addressed URLs of the built UI.
type uiAssets struct {
	Script string
	Styles []string
}

// loadUIAssets resolves the production entry point through the embedded
// bundler manifest.
func loadUIAssets() (uiAssets, error) {
	raw, err := fs.ReadFile(web.Dist, "dist/manifest.json")
	if err != nil {
		return uiAssets{}, fmt.Errorf("read ui manifest: %w", err)
	}

	var manifest map[string]manifestEntry
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return uiAssets{}, fmt.Errorf("parse ui manifest: %w", err)
	}

	entry, ok := manifest["index.html"]
	if !ok || entry.File == "" {
		return uiAssets{}, fmt.Errorf("ui manifest missing index.html entry")
	}

	assets := uiAssets{Script: "/" + strings.TrimPrefix(entry.File, "/")}
	for _, css := range entry.CSS {
		assets.Styles = append(assets.Styles, "/"+strings.TrimPrefix(css, "/"))
	}
	return assets, nil
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="Content-Security-Policy" content="{{.CSP}}">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ccbridge</title>
{{- range .Styles}}
<link rel="stylesheet" nonce="{{$.Nonce}}" href="{{.}}">
{{- end}}
</head>
<body>
<div id="root"></div>
{{- if .DevOrigin}}
<script type="module" nonce="{{.Nonce}}" src="{{.DevOrigin}}/@vite/client"></script>
<script type="module" nonce="{{.Nonce}}" src="{{.DevOrigin}}/src/main.tsx"></script>
{{- else}}
<script type="module" nonce="{{.Nonce}}" src="{{.Script}}"></script>
{{- end}}
</body>
</html>
`))

type indexData struct {
	CSP       string
	Nonce     string
	Script    string
	Styles    []string
	DevOrigin string
}

// renderIndex writes the chat UI page. A fresh nonce is generated per
// render. With devOrigin set, script tags point at the dev server for
// live reload instead of the embedded bundle.
func renderIndex(w io.Writer, assets uiAssets, devOrigin string) error {
	nonce := newNonce()
	return indexTemplate.Execute(w, indexData{
		CSP:       buildCSP(nonce, devOrigin),
		Nonce:     nonce,
		Script:    assets.Script,
		Styles:    assets.Styles,
		DevOrigin: devOrigin,
	})
}
