package api

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/atlwiki/wikilink/internal/config"
	"github.com/atlwiki/wikilink/internal/models"
	"github.com/atlwiki/wikilink/internal/store"
	"github.com/atlwiki/wikilink/internal/verify"
)

// OAuthProvider is the OAuth1 collaborator the handlers drive. Implemented
// by mediawiki.Client.
type OAuthProvider interface {
	RequestToken() (key, secret string, err error)
	AuthorizationURL(requestToken string) (string, error)
	Exchange(requestToken, requestSecret, verifier string) (*oauth1.Token, error)
	Identify(ctx context.Context, token *oauth1.Token) (string, error)
}

// The callback handler reports every token problem with this one message,
// whether the token never existed, expired or was already consumed.
const msgInvalidToken = "This verification link is invalid or has expired.\nPlease run the verify command again to get a fresh one."

// HandleVerifyEntry validates a pending link token and redirects the user
// to the provider's authorization page, stashing the request-token pair in
// a server-side session bound to this browser.
func HandleVerifyEntry(links *store.LinkStore, sessions *store.SessionStore, provider OAuthProvider, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			renderErrorPage(w, http.StatusBadRequest, "Missing Token",
				"Verification token is missing from the request.")
			return
		}

		now := time.Now().UTC()

		if !verify.WellFormedToken(token) {
			renderErrorPage(w, http.StatusBadRequest, "Invalid Token", msgInvalidToken)
			return
		}

		link, err := links.PendingByToken(token, now.Add(-verify.LinkTTL))
		if err != nil {
			log.Printf("OAuth: pending token lookup failed: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "Verification Error",
				"Could not check your verification link. Please try again later.")
			return
		}
		if link == nil {
			renderErrorPage(w, http.StatusBadRequest, "Invalid Token", msgInvalidToken)
			return
		}

		requestToken, requestSecret, err := provider.RequestToken()
		if err != nil {
			log.Printf("OAuth: request token fetch failed: %v", err)
			renderErrorPage(w, http.StatusBadGateway, "OAuth Error",
				"Failed to start the wiki authorization flow. Please try again later.")
			return
		}

		session := models.OAuthSession{
			RequestToken:  requestToken,
			RequestSecret: requestSecret,
			LinkToken:     token,
			CreatedAt:     now,
			ExpiresAt:     now.Add(sessionTTL),
		}
		if err := sessions.Create(&session); err != nil {
			log.Printf("OAuth: failed to create session: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "OAuth Error",
				"Failed to start the wiki authorization flow. Please try again later.")
			return
		}

		if err := setSessionCookie(w, cfg.JWTSecret, requestToken, now); err != nil {
			log.Printf("OAuth: failed to set session cookie: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "OAuth Error",
				"Failed to start the wiki authorization flow. Please try again later.")
			return
		}

		authURL, err := provider.AuthorizationURL(requestToken)
		if err != nil {
			log.Printf("OAuth: failed to build authorization URL: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "OAuth Error",
				"Failed to generate the wiki authorization URL. Please try again later.")
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// HandleVerifyCallback completes the provider handshake and finalizes the
// link record matched by the original token.
func HandleVerifyCallback(links *store.LinkStore, sessions *store.SessionStore, provider OAuthProvider, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oauthToken := r.URL.Query().Get("oauth_token")
		verifier := r.URL.Query().Get("oauth_verifier")

		if oauthToken == "" || verifier == "" {
			renderErrorPage(w, http.StatusBadRequest, "OAuth Verification Failed",
				"Missing OAuth parameters.")
			return
		}

		// The cookie must name the same request token the provider echoed
		// back; otherwise this callback was not started by this browser.
		if sessionRequestToken(r, cfg.JWTSecret) != oauthToken {
			renderErrorPage(w, http.StatusBadRequest, "OAuth Verification Failed",
				"Session expired or missing data. Please restart verification.")
			return
		}

		now := time.Now().UTC()

		session, err := sessions.Take(oauthToken, now)
		if err != nil {
			log.Printf("OAuth: session lookup failed: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "OAuth Verification Failed",
				"Could not load your verification session. Please restart verification.")
			return
		}
		if session == nil {
			renderErrorPage(w, http.StatusBadRequest, "OAuth Verification Failed",
				"Session expired or missing data. Please restart verification.")
			return
		}

		// Enforce the link TTL at point of use; the purge job only sweeps
		// much older rows.
		link, err := links.PendingByToken(session.LinkToken, now.Add(-verify.LinkTTL))
		if err != nil {
			log.Printf("OAuth: pending token lookup failed: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "OAuth Verification Failed",
				"Could not check your verification link. Please try again later.")
			return
		}
		if link == nil {
			renderErrorPage(w, http.StatusBadRequest, "Invalid Token", msgInvalidToken)
			return
		}

		accessToken, err := provider.Exchange(session.RequestToken, session.RequestSecret, verifier)
		if err != nil {
			// The record stays pending so the user may retry the same link
			// within its TTL.
			log.Printf("OAuth: token exchange failed: %v", err)
			renderErrorPage(w, http.StatusBadGateway, "OAuth Token Exchange Failed",
				"The wiki did not accept the authorization. Please try the link again.")
			return
		}

		username, err := provider.Identify(r.Context(), accessToken)
		if err != nil {
			log.Printf("OAuth: identity fetch failed: %v", err)
			renderErrorPage(w, http.StatusBadGateway, "Failed to Fetch User Info",
				"Could not read your wiki identity. Please try the link again.")
			return
		}

		if err := links.FinalizeByToken(session.LinkToken, username); err != nil {
			if err == store.ErrTokenUnknown {
				renderErrorPage(w, http.StatusBadRequest, "Invalid Token", msgInvalidToken)
				return
			}
			log.Printf("OAuth: finalize failed: %v", err)
			renderErrorPage(w, http.StatusInternalServerError, "Database Update Failed",
				"Your wiki identity was confirmed but could not be saved. Please try again later.")
			return
		}

		log.Printf("OAuth: link finalized for wiki user %q", username)
		clearSessionCookie(w)

		message := template.HTML(fmt.Sprintf(
			"Welcome, %s.<br>You have linked your account successfully.<br><br>You may close this tab.",
			template.HTMLEscapeString(username)))
		renderPage(w, http.StatusOK, "Verification Complete", message)
	}
}
