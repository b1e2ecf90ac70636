package portal

import (
	"html/template"
	"io"
)

const (
	pageTitle      = "EasyWiFi Setup"
	stylesheetPath = "/styles.css"

	savedBody      = "<h1>Credentials Saved. Rebooting...</h1>"
	emptySSIDBody  = "<h1>SSID cannot be empty</h1>"
	badFieldsBody  = "<h1>SSID and password cannot contain tabs or line breaks, or exceed 4 KiB</h1>"
	badFormBody    = "<h1>Malformed form submission</h1>"
	unavailableMsg = "<h1>Portal is shutting down</h1>"
)

type pageData struct {
	Title      string
	Stylesheet string
}

var pageTemplate = template.Must(template.New("portal").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
{{- if .Stylesheet}}
<link rel="stylesheet" href="{{.Stylesheet}}">
{{- else}}
<style>
body { background: #e0e0e0; font-family: Verdana, sans-serif; color: #111; margin: 0; padding: 20px; }
.container { background: #fff; border: 2px solid #000; padding: 15px; max-width: 720px; margin: 0 auto 16px; box-shadow: 4px 4px 0 #000; }
h1 { font-size: 22px; margin: 0; text-align: center; }
h2 { font-size: 18px; margin: 20px 0 10px; text-align: center; }
form { display: flex; flex-direction: column; align-items: center; }
input[type=text], input[type=password] { width: 80%; padding: 8px; margin: 5px 0 15px; border: 1px solid #ccc; border-radius: 4px; text-align: center; }
input[type=submit] { width: 50%; padding: 10px; margin-top: 10px; background: #808080; color: #fff; border: none; border-radius: 4px; cursor: pointer; }
input[type=submit]:hover { background: #606060; }
button { background: #c0c0c0; border: 2px outset #fff; padding: 6px 12px; font-weight: bold; cursor: pointer; display: block; margin: 0 auto; }
button:active { border: 2px inset #fff; background: #a0a0a0; }
ul { list-style: none; padding: 0; max-width: 400px; margin: 10px auto; }
li { padding: 8px; margin-bottom: 5px; border-radius: 4px; cursor: pointer; box-shadow: 0 1px 3px rgba(0, 0, 0, 0.1); }
li:hover { background: #e9ecef; }
</style>
{{- end}}
</head>
<body>
<div class="container"><h1>{{.Title}}</h1></div>
<div class="container">
<form method="POST" action="/save">
<label for="ssid">SSID</label>
<input type="text" id="ssid" name="ssid">
<label for="password">Password</label>
<input type="password" id="password" name="password">
<input type="submit" value="Save">
</form>
<h2>Available Networks</h2>
<button type="button" onclick="scan()">Scan Networks</button>
<ul id="networks"></ul>
</div>
<script>
function scan() {
  fetch('/scan').then(function (r) { return r.json(); }).then(function (nets) {
    var list = document.getElementById('networks');
    list.innerHTML = '';
    nets.forEach(function (net) {
      var item = document.createElement('li');
      item.textContent = net.ssid + ' (' + net.rssi + ' dBm)';
      item.onclick = function () { document.getElementById('ssid').value = net.ssid; };
      list.appendChild(item);
    });
  });
}
</script>
</body>
</html>
`))

func renderPage(w io.Writer, stylesheet string) error {
	return pageTemplate.Execute(w, pageData{Title: pageTitle, Stylesheet: stylesheet})
}
