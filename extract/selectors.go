package extract

// DefaultRemoveSelectors lists boilerplate subtrees removed before reading text.
var DefaultRemoveSelectors = []string{
	"script", "style", "noscript", "iframe",
	"nav", "footer", "header",
	".nav", ".navigation", ".menu", ".sidebar", ".footer", ".header",
	".ads", ".advertisement", ".cookie-banner", ".popup",
	"[role='navigation']", "[role='banner']", "[role='contentinfo']",
}

// DefaultContentSelectors lists content containers probed by auto-detection,
// highest priority first.
var DefaultContentSelectors = []string{
	"article", "main", "[role='main']",
	".content", "#content", ".post-content", ".article-content",
	".documentation", ".docs-content", ".markdown-body", ".prose",
}
