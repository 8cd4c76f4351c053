package collect

// markdownReport mirrors the structure of the HTML brief: papers, news,
// stats. It is the email's plain part and the Discord payload.
const markdownReport = `# Mathematical Optimization Daily Brief

**Generated**: {{.GeneratedAt}} JST

---

## New Papers ({{len .Papers}})
{{if .Papers}}{{range $i, $p := .Papers}}
### {{inc $i}}. {{$p.Title}}

- **Authors**: {{join $p.Authors ", "}}
- **Categories**: {{join (first 2 $p.Categories) ", "}}
- **Published**: {{$p.Published}}
- **Abstract**: {{$p.Abstract}}
- **URL**: {{$p.URL}}

---
{{end}}{{else}}
No new papers today.

---
{{end}}
## Optimization Technology News ({{len .News}})
{{if .News}}{{range $i, $n := .News}}
### {{inc $i}}. {{$n.Title}}

- **Summary**: {{$n.Summary}}
- **Relevance**: {{stars $n.Relevance}}
- **Link**: {{$n.Link}}
- **Published**: {{$n.Published}}

---
{{end}}{{else}}
No related news today.

---
{{end}}
## Collection Stats

- Papers: {{len .Papers}}
- News: {{len .News}}
- Generated: {{.GeneratedAtFull}} JST

---
*This brief was generated automatically (JST: Japan Standard Time)*
`

// htmlReport is the email's rich part. Styles are inlined in a single
// style block so mail clients render it without external assets.
const htmlReport = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Mathematical Optimization Daily Brief</title>
<style>
body {
  font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
  line-height: 1.6;
  margin: 0;
  padding: 20px;
  background-color: #f5f5f5;
  color: #333;
}
.container {
  max-width: 800px;
  margin: 0 auto;
  background-color: white;
  border-radius: 10px;
  box-shadow: 0 4px 6px rgba(0,0,0,0.1);
  overflow: hidden;
}
.header {
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  color: white;
  padding: 30px;
  text-align: center;
}
.header h1 { margin: 0; font-size: 28px; font-weight: 300; }
.header .date { margin-top: 10px; font-size: 16px; opacity: 0.9; }
.section { margin: 20px; }
.section-title {
  font-size: 22px;
  font-weight: 600;
  margin: 30px 0 20px 0;
  padding: 15px;
  border-radius: 8px;
}
.section-title.papers {
  background-color: #e3f2fd;
  border-left: 5px solid #2196f3;
  color: #1976d2;
}
.section-title.news {
  background-color: #fff8e1;
  border-left: 5px solid #ff9800;
  color: #f57c00;
}
.item {
  border: 1px solid #e0e0e0;
  border-radius: 8px;
  margin: 15px 0;
  padding: 20px;
  box-shadow: 0 2px 4px rgba(0,0,0,0.05);
}
.item-title {
  font-size: 18px;
  font-weight: 600;
  margin-bottom: 12px;
  color: #2c3e50;
}
.item-meta { margin-bottom: 12px; font-size: 14px; color: #666; }
.meta-label { font-weight: 600; margin-right: 5px; }
.abstract { color: #555; margin-bottom: 15px; }
.link {
  display: inline-block;
  background-color: #4CAF50;
  color: white;
  padding: 8px 16px;
  text-decoration: none;
  border-radius: 4px;
  font-size: 14px;
}
.news-link { background-color: #ff9800; }
.relevance-stars { color: #ffc107; font-size: 16px; }
.stats {
  background-color: #f8f9fa;
  border-radius: 8px;
  padding: 20px;
  margin: 30px 20px;
  text-align: center;
}
.stat-number { font-size: 24px; font-weight: 700; color: #2196f3; }
.stat-label { font-size: 14px; color: #666; }
.footer {
  text-align: center;
  padding: 20px;
  color: #999;
  font-size: 12px;
  border-top: 1px solid #eee;
}
.no-content { text-align: center; padding: 40px; color: #999; font-style: italic; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Mathematical Optimization Daily Brief</h1>
    <div class="date">{{.GeneratedAt}} JST</div>
  </div>

  <div class="section">
    <div class="section-title papers">New Papers ({{len .Papers}})</div>
{{if .Papers}}{{range $i, $p := .Papers}}    <div class="item">
      <div class="item-title">{{inc $i}}. {{$p.Title}}</div>
      <div class="item-meta">
        <span class="meta-label">Authors:</span> {{join $p.Authors ", "}}<br>
        <span class="meta-label">Categories:</span> {{join (first 2 $p.Categories) ", "}}<br>
        <span class="meta-label">Published:</span> {{$p.Published}}
      </div>
      <div class="abstract">{{$p.Abstract}}</div>
      <a href="{{$p.URL}}" class="link" target="_blank">Read the paper</a>
    </div>
{{end}}{{else}}    <div class="no-content">No new papers today.</div>
{{end}}  </div>

  <div class="section">
    <div class="section-title news">Optimization Technology News ({{len .News}})</div>
{{if .News}}{{range $i, $n := .News}}    <div class="item">
      <div class="item-title">{{inc $i}}. {{$n.Title}}</div>
      <div class="item-meta">
        <span class="meta-label">Relevance:</span> <span class="relevance-stars">{{stars $n.Relevance}}</span><br>
        <span class="meta-label">Published:</span> {{$n.Published}}
      </div>
      <div class="abstract">{{$n.Summary}}</div>
      <a href="{{$n.Link}}" class="link news-link" target="_blank">Read the article</a>
    </div>
{{end}}{{else}}    <div class="no-content">No related news today.</div>
{{end}}  </div>

  <div class="stats">
    <h3>Collection Stats</h3>
    <div class="stat-number">{{len .Papers}}</div>
    <div class="stat-label">papers</div>
    <div class="stat-number">{{len .News}}</div>
    <div class="stat-label">news items</div>
  </div>

  <div class="footer">
    This brief was generated automatically<br>
    Japan Standard Time (JST) - {{.GeneratedAtFull}}
  </div>
</div>
</body>
</html>
`
