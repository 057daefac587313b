package runlog

import "net/http"

// indexHTML is the dashboard page served at /. It calls the summary
// endpoint on the same origin and renders the buckets as a table.
const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>weft run log</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-top: 1rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: right; }
th:first-child, td:first-child { text-align: left; }
th { background: #f5f5f5; }
.fail { color: #b00; }
</style>
</head>
<body>
<h1>weft run log</h1>
<label>Group by
<select id="group">
<option value="template">template</option>
<option value="model">model</option>
<option value="day">day</option>
<option value="hour">hour</option>
</select>
</label>
<table>
<thead><tr><th>key</th><th>runs</th><th>failures</th><th>avg ms</th><th>prompt tok</th><th>completion tok</th></tr></thead>
<tbody id="rows"></tbody>
</table>
<script>
async function load() {
  const group = document.getElementById("group").value;
  const resp = await fetch("/summary?group_by=" + encodeURIComponent(group));
  const data = await resp.json();
  const rows = document.getElementById("rows");
  rows.innerHTML = "";
  for (const s of data.summaries || []) {
    const tr = document.createElement("tr");
    tr.innerHTML = "<td>" + s.key + "</td><td>" + s.invocations +
      "</td><td class=\"" + (s.failures > 0 ? "fail" : "") + "\">" + s.failures +
      "</td><td>" + s.avg_latency_ms.toFixed(0) +
      "</td><td>" + s.prompt_tokens + "</td><td>" + s.completion_tokens + "</td>";
    rows.appendChild(tr);
  }
}
document.getElementById("group").addEventListener("change", load);
load();
</script>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
