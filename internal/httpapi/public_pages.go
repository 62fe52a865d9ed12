package httpapi

import (
	"html/template"
	"net/http"
)

var publicPageT = template.Must(template.New("public").Parse(publicLayout))

type publicPageData struct {
	Title string
	Token string
}

// handleResetPage is where reset links land. The form posts the token from
// the query string to /v1/auth/reset-password.
func (a *api) handleResetPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		renderPublicPage(w, http.StatusBadRequest, publicPageData{Title: "Invalid reset link"})
		return
	}
	w.Header().Set("Referrer-Policy", "no-referrer")
	renderPublicPage(w, http.StatusOK, publicPageData{Title: "Choose a new password", Token: token})
}

func renderPublicPage(w http.ResponseWriter, status int, data publicPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = publicPageT.Execute(w, data)
}

const publicLayout = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>{{.Title}}</title>
    <style>
      :root{--bg:#0b0b0f;--ink:#f8fafc;--muted:#cbd5f5;--accent:#ef4444;--card:rgba(15,23,42,0.85);--line:rgba(148,163,184,0.25);color-scheme:dark}
      *{box-sizing:border-box}
      body{margin:0;font-family:"Helvetica Neue",Arial,sans-serif;color:var(--ink);background:var(--bg);min-height:100vh;display:flex;align-items:center;justify-content:center}
      main{background:var(--card);border:1px solid var(--line);border-radius:16px;padding:32px;width:min(420px,92vw)}
      h1{margin:0 0 16px;font-size:1.4rem}
      p{color:var(--muted)}
      label{display:block;margin:12px 0 4px;color:var(--muted)}
      input{width:100%;padding:10px;border-radius:8px;border:1px solid var(--line);background:#11121a;color:var(--ink)}
      button{margin-top:20px;width:100%;padding:12px;border:0;border-radius:8px;background:var(--accent);color:#fff;font-weight:600;cursor:pointer}
      #status{min-height:1.5em}
    </style>
  </head>
  <body>
    <main>
      <h1>{{.Title}}</h1>
      {{if .Token}}
      <form id="reset">
        <input type="hidden" name="token" value="{{.Token}}" />
        <label for="password">New password</label>
        <input id="password" name="password" type="password" minlength="8" autocomplete="new-password" required />
        <label for="confirm">Confirm password</label>
        <input id="confirm" name="confirm" type="password" minlength="8" autocomplete="new-password" required />
        <button type="submit">Reset password</button>
        <p id="status" role="status"></p>
      </form>
      <script>
        document.getElementById("reset").addEventListener("submit", async (ev) => {
          ev.preventDefault();
          const f = ev.target, status = document.getElementById("status");
          if (f.password.value !== f.confirm.value) { status.textContent = "Passwords do not match."; return; }
          const res = await fetch("/v1/auth/reset-password", {
            method: "POST",
            headers: {"Content-Type": "application/json"},
            body: JSON.stringify({token: f.token.value, password: f.password.value}),
          });
          if (res.ok) { f.replaceWith(Object.assign(document.createElement("p"), {textContent: "Your password has been reset. You can sign in now."})); return; }
          const body = await res.json().catch(() => ({}));
          status.textContent = (body.error && body.error.message) || "Reset failed.";
        });
      </script>
      {{else}}
      <p>This reset link is missing its token. Request a new one from the sign-in screen.</p>
      {{end}}
    </main>
  </body>
</html>
`
