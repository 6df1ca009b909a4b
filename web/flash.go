package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Bios-Marcel/mergington/controller"
)

// FlashCookie carries the outcome of a form post to the page it redirects
// to. It is read once and cleared.
const FlashCookie = "flash"

func writeFlash(responseWriter http.ResponseWriter, request *http.Request, notice controller.Notice) {
	if notice.Empty() {
		clearFlash(responseWriter, request)
		return
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return
	}
	http.SetCookie(responseWriter, &http.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func readFlash(responseWriter http.ResponseWriter, request *http.Request) (controller.Notice, bool) {
	cookie, err := request.Cookie(FlashCookie)
	if err != nil {
		return controller.Notice{}, false
	}
	clearFlash(responseWriter, request)

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(cookie.Value))
	if err != nil {
		return controller.Notice{}, false
	}
	var notice controller.Notice
	if err := json.Unmarshal(decoded, &notice); err != nil {
		return controller.Notice{}, false
	}
	return notice, true
}

func clearFlash(responseWriter http.ResponseWriter, request *http.Request) {
	http.SetCookie(responseWriter, &http.Cookie{
		Name:     FlashCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
