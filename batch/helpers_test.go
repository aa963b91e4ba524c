package batch

import (
	"os"
	"strings"
)

func longText(word string) string {
	return strings.TrimSpace(strings.Repeat(word+" is documented here. ", 12))
}

func pageHTML(body string) string {
	return "<html><head><title>Page</title></head><body><nav>menu</nav><main>" + body + "</main></body></html>"
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
