package api

import (
	"html/template"
	"log"
	"net/http"
	"strings"
)

// The result pages are rendered from this one fixed template. No redirect
// target or markup ever comes from the request.
const pageHTML = `<html lang="en">
    <head>
        <meta charset="UTF-8">
        <title>{{ .Title }}</title>
        <meta name="viewport" content="width=device-width, initial-scale=1.0">
        <style>
            body {
                background: #181a1b;
                color: #e8e6e3;
                font-family: 'Segoe UI', 'Arial', sans-serif;
                margin: 0;
                padding: 0;
                min-height: 100vh;
                display: flex;
                align-items: center;
                justify-content: center;
            }
            .container {
                background: #23272a;
                border-radius: 12px;
                box-shadow: 0 4px 24px rgba(0,0,0,0.5);
                padding: 2.5rem 2rem;
                max-width: 400px;
                width: 100%;
                text-align: center;
            }
            h2 {
                margin-top: 0;
                color: #8ec07c;
                font-weight: 600;
            }
            p {
                color: #e8e6e3;
                margin-bottom: 0;
            }
            @media (max-width: 500px) {
                .container {
                    padding: 1.5rem 0.5rem;
                }
            }
        </style>
    </head>
    <body>
        <div class="container">
            <h2>{{ .Title }}</h2>
            <p>{{ .Message }}</p>
        </div>
    </body>
</html>
`

const contactHTML = `<br><br>Please report this error to atl.wiki staff ` +
	`(<a href="https://atl.wiki/Atl.wiki:Contact" target="_blank" rel="noopener noreferrer">contact</a>).`

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

type pageData struct {
	Title   string
	Message template.HTML
}

// escapeLines escapes user-influenced text and converts newlines to breaks
func escapeLines(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func renderPage(w http.ResponseWriter, status int, title string, message template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, pageData{Title: title, Message: message}); err != nil {
		log.Printf("Pages: failed to render %q: %v", title, err)
	}
}

// renderErrorPage renders a fixed-template error page with the staff
// contact footer appended
func renderErrorPage(w http.ResponseWriter, status int, title, message string) {
	renderPage(w, status, title, escapeLines(message)+template.HTML(contactHTML))
}
