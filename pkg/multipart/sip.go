package multipart

import (
	"github.com/emiago/sipgo/sip"
)

// headerReplacer реализуют *sip.Request и *sip.Response
type headerReplacer interface {
	ReplaceHeader(header sip.Header)
}

// Attach помещает тело в исходящее SIP сообщение.
// Если body не nil, отправляется multipart с его Content-Type, иначе - обычный
// SDP с application/sdp. Предыдущий Content-Type заменяется, Content-Length
// обновляется через SetBody.
func Attach(msg sip.Message, sdp string, body *Body) {
	var content []byte
	var contentType string

	switch {
	case body != nil:
		content = body.Content
		contentType = body.ContentType
	case sdp != "":
		content = []byte(sdp)
		contentType = SDPContentType
	default:
		return
	}

	ct := sip.ContentTypeHeader(contentType)
	if r, ok := msg.(headerReplacer); ok && len(msg.GetHeaders("Content-Type")) > 0 {
		r.ReplaceHeader(&ct)
	} else {
		msg.AppendHeader(&ct)
	}
	msg.SetBody(content)
}
