package relay

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// clientMessageMarker tags messages this process forwarded on behalf of the
// user so their webhook echo can be told apart from a genuine agent reply.
const clientMessageMarker = "<!-- client_message_marker -->"

var (
	forwardedPattern = regexp.MustCompile(`(?s)<p><strong>From.*?:</strong>\s*(.*?)</p>`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
)

// isForwardedUserMessage reports whether the HTML body is an echo of a
// message this process itself relayed from the user into the conversation.
func isForwardedUserMessage(content string) bool {
	return strings.Contains(content, clientMessageMarker) || forwardedPattern.MatchString(content)
}

// htmlToPlainText strips presentation markup from an agent reply.
func htmlToPlainText(content string) string {
	text, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		text = tagPattern.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(html.UnescapeString(text))
}

func initialMessageBody(requestID, userName, userEmail, message, chatHistory string, createdAt string) string {
	var history string
	if strings.TrimSpace(chatHistory) != "" {
		history = fmt.Sprintf("<p><strong>Previous chatbot conversation:</strong></p><pre>%s</pre><hr>", html.EscapeString(chatHistory))
	}
	return fmt.Sprintf(`<h2>New Support Request</h2>
<p><strong>From:</strong> %s (%s)</p>
<p><strong>Request ID:</strong> %s</p>
<p><strong>Time:</strong> %s</p>
<hr>
<p><strong>Message:</strong></p>
<p>%s</p>
<hr>
%s<p>Reply to this message to respond directly to the user.</p>`,
		html.EscapeString(userName), html.EscapeString(userEmail), requestID, createdAt, html.EscapeString(message), history)
}

func followUpMessageBody(userName, message string) string {
	return fmt.Sprintf("<p><strong>From %s:</strong> %s</p>\n%s",
		html.EscapeString(userName), html.EscapeString(message), clientMessageMarker)
}
