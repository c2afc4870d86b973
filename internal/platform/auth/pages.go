package auth

import (
	"html/template"
)

var pages = template.Must(template.New("layout").Parse(`{{define "layout"}}<!doctype html>
<html lang="es">
<head><meta charset="utf-8"><title>{{.Title}}</title><link rel="stylesheet" href="/static/app.css"></head>
<body><main>
<h1>{{.Title}}</h1>
{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
{{if .Message}}<p class="notice">{{.Message}}</p>{{end}}
{{template "content" .}}
</main></body>
</html>{{end}}`))

var (
	chooserPage = template.Must(template.Must(pages.Clone()).Parse(`{{define "content"}}
<ul class="portals">
{{range .Portals}}<li><a href="{{.Path}}">{{.Title}}</a></li>
{{end}}</ul>
<p><a href="/registro">Crear cuenta de paciente</a></p>
{{end}}`))

	loginPage = template.Must(template.Must(pages.Clone()).Parse(`{{define "content"}}
<form method="post" action="{{.Action}}">
<label>Correo electrónico <input type="email" name="email" value="{{.Email}}" required autocomplete="username"></label>
<label>Contraseña <input type="password" name="password" required autocomplete="current-password"></label>
<button type="submit">Ingresar</button>
</form>
<p><a href="/ingreso">Cambiar de portal</a></p>
{{end}}`))

	signupPage = template.Must(template.Must(pages.Clone()).Parse(`{{define "content"}}
<form method="post" action="/registro">
<label>Nombre <input name="nombre" value="{{.Form.nombre}}" required></label>
<label>Apellido <input name="apellido" value="{{.Form.apellido}}" required></label>
<label>Teléfono <input name="telefono" value="{{.Form.telefono}}"></label>
<label>Correo electrónico <input type="email" name="email" value="{{.Email}}" required autocomplete="username"></label>
<label>Contraseña <input type="password" name="password" minlength="8" required autocomplete="new-password"></label>
<button type="submit">Registrarme</button>
</form>
{{end}}`))
)

type pageData struct {
	Title   string
	Error   string
	Message string
	Action  string
	Email   string
	Portals []Portal
	Form    map[string]string
}
