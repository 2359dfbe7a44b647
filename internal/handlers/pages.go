package handlers

import (
	"fmt"
	"html"
	"net/http"
)

const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sentinel — Sign in</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b;
            --bg-subtle: #18181b;
            --border: #27272a;
            --text: #fafafa;
            --text-secondary: #a1a1aa;
            --accent: #3b82f6;
        }
        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: var(--bg);
            color: var(--text);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            font-size: 14px;
        }
        .card {
            background: var(--bg-subtle);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 32px;
            width: 100%;
            max-width: 360px;
        }
        h1 { font-size: 18px; margin-bottom: 4px; }
        .sub { color: var(--text-secondary); margin-bottom: 24px; }
        label { display: block; color: var(--text-secondary); margin-bottom: 6px; }
        input {
            width: 100%;
            background: var(--bg);
            border: 1px solid var(--border);
            border-radius: 6px;
            color: var(--text);
            padding: 10px 12px;
            margin-bottom: 16px;
            font-size: 14px;
        }
        input:focus { outline: none; border-color: var(--accent); }
        button {
            width: 100%;
            background: var(--accent);
            border: none;
            border-radius: 6px;
            color: white;
            padding: 10px;
            font-size: 14px;
            cursor: pointer;
        }
        .links { margin-top: 16px; text-align: center; }
        .links a { color: var(--text-secondary); text-decoration: none; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Sentinel</h1>
        <p class="sub">Sign in to continue</p>
        <form method="POST" action="/login">
            <label for="username">Username</label>
            <input type="text" id="username" name="username" autocomplete="username" required>
            <label for="password">Password</label>
            <input type="password" id="password" name="password" autocomplete="current-password" required>
            <button type="submit">Sign in</button>
        </form>
        <div class="links"><a href="/dashboard">Monitoring dashboard</a></div>
    </div>
</body>
</html>
`

const messagePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sentinel — %s</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: #09090b;
            color: #fafafa;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            font-size: 14px;
        }
        .card {
            background: #18181b;
            border: 1px solid #27272a;
            border-radius: 8px;
            padding: 32px;
            max-width: 420px;
            text-align: center;
        }
        h1 { font-size: 18px; margin-bottom: 8px; }
        p { color: #a1a1aa; margin-bottom: 16px; }
        a { color: #3b82f6; text-decoration: none; }
    </style>
</head>
<body>
    <div class="card">
        <h1>%s</h1>
        <p>%s</p>
        <a href="/">Back to sign in</a>
    </div>
</body>
</html>
`

// PagesHandler serves the static HTML pages
type PagesHandler struct{}

// NewPagesHandler creates a new PagesHandler
func NewPagesHandler() *PagesHandler {
	return &PagesHandler{}
}

// Home serves the login page
func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, loginPageHTML)
}

// writeMessagePage writes a small HTML result page with the given status code
func writeMessagePage(w http.ResponseWriter, statusCode int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, messagePageTemplate,
		html.EscapeString(title),
		html.EscapeString(title),
		html.EscapeString(detail))
}
