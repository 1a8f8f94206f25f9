package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/leg_media/pkg/multipart"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const cliSDP = "v=0\no=- 1 1 IN IP4 127.0.0.1\ns=-\nc=IN IP4 127.0.0.1\nt=0 0\nm=audio %d RTP/AVP 0\na=rtpmap:0 PCMU/8000\n"

func TestRewriteCommand(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "sdp_replace_ip: \"127.0.0.1|192.0.2.10\"\n")

	out, _, err := execute(t, fmt.Sprintf(cliSDP, 4000), "rewrite", "--vars", vars)
	require.NoError(t, err)

	assert.Contains(t, out, "o=- 1 1 IN IP4 192.0.2.10\r\n")
	assert.Contains(t, out, "c=IN IP4 192.0.2.10\r\n")
	assert.NotContains(t, out, "127.0.0.1")
}

func TestRewriteCommandTooLarge(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "sdp_replace_ip: \"127.0.0.1|192.0.2.10\"\n")
	conf := writeFile(t, "conf.yaml", "leg:\n  max_body_size: 16\n")

	_, _, err := execute(t, fmt.Sprintf(cliSDP, 4000), "rewrite", "--vars", vars, "--config", conf)
	assert.Error(t, err)
}

func TestMultipartCommand(t *testing.T) {
	vars := writeFile(t, "vars.yaml", "sip_multipart:\n  - \"application/isup:payload\"\n")

	out, _, err := execute(t, fmt.Sprintf(cliSDP, 4000), "multipart", "--vars", vars, "--boundary", "b-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "SIP/2.0 183 Session Progress\r\n"))
	assert.Contains(t, out, "Content-Type: multipart/mixed; boundary=b-1\r\n")
	assert.Contains(t, out, "--b-1\r\nContent-Type: application/isup\r\nContent-Length: 8\r\n\r\npayload\r\n")
	assert.True(t, strings.HasSuffix(out, "--b-1--\r\n"))
}

func TestWriteProgress(t *testing.T) {
	body := &multipart.Body{
		ContentType: multipart.ContentTypeHeader("call-1"),
		Boundary:    "call-1",
		Content:     []byte("--call-1--\r\n"),
		Parts:       1,
	}

	var out bytes.Buffer
	require.NoError(t, writeProgress(&out, "call-1", "v=0\r\n", body))

	msg, err := sip.ParseMessage(out.Bytes())
	require.NoError(t, err)
	res, ok := msg.(*sip.Response)
	require.True(t, ok)

	assert.Equal(t, 183, res.StatusCode)
	require.NotNil(t, res.To())
	tag, ok := res.To().Params.Get("tag")
	assert.True(t, ok)
	assert.NotEmpty(t, tag)
	require.NotNil(t, res.CallID())
	assert.Equal(t, "call-1", res.CallID().Value())

	require.Len(t, res.GetHeaders("Content-Type"), 1)
	assert.Equal(t, "multipart/mixed; boundary=call-1", res.GetHeaders("Content-Type")[0].Value())
	assert.Equal(t, body.Content, res.Body())
}

func TestMultipartCommandWithoutParts(t *testing.T) {
	out, _, err := execute(t, fmt.Sprintf(cliSDP, 4000), "multipart")
	require.NoError(t, err)

	assert.Contains(t, out, "Content-Type: application/sdp\r\n")
	assert.NotContains(t, out, "multipart/mixed")
}

func TestEstablishCommand(t *testing.T) {
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peer.Close()
	port := peer.LocalAddr().(*net.UDPAddr).Port

	conf := writeFile(t, "conf.yaml", "media:\n  local_ip: 127.0.0.1\n  port_min: 42000\n  port_max: 42100\n  dscp: 0\n")

	out, errOut, err := execute(t, fmt.Sprintf(cliSDP, port), "establish", "--config", conf, "--metrics")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "SIP/2.0 183 Session Progress\r\n"))
	assert.Contains(t, out, "Content-Type: application/sdp\r\n")
	assert.Contains(t, out, "m=audio 42000 RTP/AVP 0\r\n")
	assert.Contains(t, errOut, `leg_media_media_sdp_establishments_total{result="success"} 1`)
}

func TestEstablishCommandRejected(t *testing.T) {
	sdp := "v=0\no=- 1 1 IN IP4 127.0.0.1\ns=-\nc=IN IP4 127.0.0.1\nt=0 0\nm=audio 4000 RTP/AVP 18\na=rtpmap:18 G729/8000\n"

	_, _, err := execute(t, sdp, "establish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
