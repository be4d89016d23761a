// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enml

import (
	"errors"
	"strings"
	"testing"

	"github.com/pdiddy/enwiki/pkg/types"
)

// md5 of "hello".
const helloHash = "5d41402abc4b2a76b9719d911017c592"

func noteWith(body string, attachments ...types.Attachment) *types.Note {
	return &types.Note{
		Title: "Test Note",
		Content: `<?xml version="1.0" encoding="UTF-8"?>` +
			`<!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">` +
			`<en-note>` + body + `</en-note>`,
		Attachments: attachments,
	}
}

func transform(t *testing.T, body string, attachments ...types.Attachment) string {
	t.Helper()
	tr := &Transformer{}
	return tr.Transform(noteWith(body, attachments...)).Content
}

func TestTransformEmptyContent(t *testing.T) {
	tr := &Transformer{}
	for _, content := range []string{"", "   \n  "} {
		result := tr.Transform(&types.Note{Content: content})
		if result.Content != "" {
			t.Errorf("Transform(%q) = %q, want empty", content, result.Content)
		}
	}
}

func TestTransformFormatting(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bold", `<div>Hi <b>there</b></div>`, "Hi **there**"},
		{"strong", `<div><strong>loud</strong></div>`, "**loud**"},
		{"italic", `<div><i>slanted</i></div>`, "//slanted//"},
		{"emphasis", `<div><em>stress</em></div>`, "//stress//"},
		{"underline", `<div><u>under</u></div>`, "__under__"},
		{"strike", `<div><s>gone</s></div>`, "--gone--"},
		{"nested inline", `<div><b><i>both</i></b></div>`, "**//both//**"},
		{"link with label", `<div><a href="https://example.com/page">Click</a></div>`, "[[Click>>https://example.com/page]]"},
		{"bare link", `<div><a href="https://example.com">https://example.com</a></div>`, "[[https://example.com]]"},
		{"anchor without href", `<div><a name="x">text</a></div>`, "text"},
		{"heading", `<h2>Section Title</h2>`, "== Section Title =="},
		{"deep heading", `<h6>Fine Print</h6>`, "====== Fine Print ======"},
		{"horizontal rule", `<div>a</div><hr/><div>b</div>`, "a\n\n----\nb"},
		{"inline code", `<div><code>x = 1</code></div>`, "###x = 1###"},
		{"line break", `<div>one<br/>two</div>`, "one\ntwo"},
		{"unchecked todo", `<div><en-todo/>Buy milk</div>`, "[ ] Buy milk"},
		{"checked todo", `<div><en-todo checked="true"/>Done task</div>`, "[x] Done task"},
		{"bold span", `<div><span style="font-weight: bold;">heavy</span></div>`, "**heavy**"},
		{"numeric weight span", `<div><span style="font-weight: 700;">heavy</span></div>`, "**heavy**"},
		{"underline span", `<div><span style="text-decoration: underline;">under</span></div>`, "__under__"},
		{"plain span", `<div><span style="color: red;">plain</span></div>`, "plain"},
		{"entity escape", `<div>salt &amp; pepper</div>`, "salt & pepper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transform(t, tt.body); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransformLists(t *testing.T) {
	got := transform(t, `<ul><li>first</li><li>second</li></ul>`)
	want := "* first\n* second"
	if got != want {
		t.Errorf("flat list = %q, want %q", got, want)
	}

	got = transform(t, `<ol><li>one</li><li>two</li></ol>`)
	if !strings.Contains(got, "1. one") || !strings.Contains(got, "1. two") {
		t.Errorf("ordered list = %q", got)
	}

	got = transform(t, `<ul><li>outer<ul><li>inner</li></ul></li></ul>`)
	if !strings.Contains(got, "* outer") {
		t.Errorf("nested list missing outer item: %q", got)
	}
	if !strings.Contains(got, "** inner") {
		t.Errorf("nested list missing doubled marker: %q", got)
	}
}

func TestTransformTable(t *testing.T) {
	body := `<table><tr><th>Name</th><th>Age</th></tr><tr><td>Ada</td><td>36</td></tr></table>`
	got := transform(t, body)
	want := "|=Name|=Age\n|Ada|36"
	if got != want {
		t.Errorf("table = %q, want %q", got, want)
	}
}

func TestTransformNestedTableFlattens(t *testing.T) {
	body := `<table><tr><td>before <table><tr><td>inner</td></tr></table></td></tr></table>`
	got := transform(t, body)
	if !strings.Contains(got, "inner") {
		t.Errorf("nested table text dropped: %q", got)
	}
}

func TestTransformBlockquote(t *testing.T) {
	got := transform(t, `<blockquote>wise words</blockquote>`)
	if !strings.Contains(got, "> wise words") {
		t.Errorf("blockquote = %q", got)
	}
}

func TestTransformCodeBlock(t *testing.T) {
	got := transform(t, `<pre>line one
line two</pre>`)
	if !strings.Contains(got, "{{code}}") || !strings.Contains(got, "{{/code}}") {
		t.Errorf("pre block = %q", got)
	}
	if !strings.Contains(got, "line one\nline two") {
		t.Errorf("pre content mangled: %q", got)
	}
}

func TestTransformEncrypted(t *testing.T) {
	got := transform(t, `<div><en-crypt>3l1das8f</en-crypt></div>`)
	if !strings.Contains(got, "{{warning}}") {
		t.Errorf("encrypted block = %q", got)
	}
	if strings.Contains(got, "3l1das8f") {
		t.Errorf("ciphertext leaked into output: %q", got)
	}
}

func TestTransformMedia(t *testing.T) {
	image := types.Attachment{Filename: "photo.png", MIMEType: "image/png", Hash: helloHash}
	pdf := types.Attachment{Filename: "report.pdf", MIMEType: "application/pdf", Hash: "aabbccddeeff00112233445566778899"}

	tests := []struct {
		name string
		body string
		atts []types.Attachment
		want string
	}{
		{
			"image reference",
			`<div><en-media hash="` + helloHash + `" type="image/png"/></div>`,
			[]types.Attachment{image},
			"[[image:photo.png]]",
		},
		{
			"uppercase dashed hash resolves",
			`<div><en-media hash="5D41-402A-BC4B-2A76-B971-9D91-1017-C592" type="image/png"/></div>`,
			[]types.Attachment{image},
			"[[image:photo.png]]",
		},
		{
			"file reference",
			`<div><en-media hash="aabbccddeeff00112233445566778899" type="application/pdf"/></div>`,
			[]types.Attachment{pdf},
			"[[report.pdf>>attach:report.pdf]]",
		},
		{
			"missing attachment placeholder",
			`<div><en-media hash="00000000000000000000000000000000" type="image/png"/></div>`,
			nil,
			"[Missing attachment: 00000000...]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transform(t, tt.body, tt.atts...); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransformSelfClosedMediaKeepsSiblings(t *testing.T) {
	image := types.Attachment{Filename: "photo.png", MIMEType: "image/png", Hash: helloHash}
	body := `<div>before <en-media hash="` + helloHash + `" type="image/png"/> after</div>`
	got := transform(t, body, image)
	want := "before [[image:photo.png]] after"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTransformDataURIImage(t *testing.T) {
	tr := &Transformer{}
	note := noteWith(`<div><img src="data:image/png;base64,aGVsbG8="/></div>`)

	result := tr.Transform(note)
	wantName := "embedded_" + helloHash[:8] + ".png"
	if result.Content != "[[image:"+wantName+"]]" {
		t.Errorf("content = %q", result.Content)
	}
	if len(result.DownloadedImages) != 1 {
		t.Fatalf("got %d downloaded images, want 1", len(result.DownloadedImages))
	}
	if result.DownloadedImages[0].Filename != wantName {
		t.Errorf("filename = %q, want %q", result.DownloadedImages[0].Filename, wantName)
	}
	if string(result.DownloadedImages[0].Data) != "hello" {
		t.Errorf("data = %q", result.DownloadedImages[0].Data)
	}
}

// stubFetcher returns a canned attachment or error for every URL.
type stubFetcher struct {
	att *types.Attachment
	err error
}

func (f *stubFetcher) FetchImage(rawURL string) (*types.Attachment, error) {
	if f.err != nil {
		return nil, f.err
	}
	copy := *f.att
	return &copy, nil
}

func TestTransformExternalImage(t *testing.T) {
	body := `<div><img src="https://example.com/pic.png"/></div>`

	// No fetcher configured: emit the URL reference.
	if got := transform(t, body); got != "[[image:https://example.com/pic.png]]" {
		t.Errorf("no fetcher: %q", got)
	}

	// Fetch failure degrades to an external reference.
	tr := &Transformer{Fetcher: &stubFetcher{err: errors.New("connection refused")}}
	result := tr.Transform(noteWith(body))
	want := "[[image:https://example.com/pic.png]] //(external image)//"
	if result.Content != want {
		t.Errorf("failed fetch = %q, want %q", result.Content, want)
	}
	if len(result.DownloadedImages) != 0 {
		t.Errorf("failed fetch should not record downloads, got %d", len(result.DownloadedImages))
	}

	// Successful fetch attaches the image.
	tr = &Transformer{Fetcher: &stubFetcher{att: &types.Attachment{
		Filename: "pic.png", MIMEType: "image/png", Data: []byte("hello"), Hash: helloHash,
	}}}
	result = tr.Transform(noteWith(body))
	if result.Content != "[[image:pic.png]]" {
		t.Errorf("fetched image = %q", result.Content)
	}
	if len(result.DownloadedImages) != 1 {
		t.Fatalf("got %d downloaded images, want 1", len(result.DownloadedImages))
	}
}

func TestTransformStripsDeclarations(t *testing.T) {
	tr := &Transformer{}
	result := tr.Transform(&types.Note{Content: `<?xml version="1.0"?><!DOCTYPE en-note SYSTEM "x"><en-note>Just text</en-note>`})
	if result.Content != "Just text" {
		t.Errorf("got %q, want %q", result.Content, "Just text")
	}
}

func TestTransformCollapsesBlankRuns(t *testing.T) {
	got := transform(t, `<div>a</div><div><br/></div><div><br/></div><div><br/></div><div>b</div>`)
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("output has a run of blank lines: %q", got)
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags(`<div>salt &amp; <b>pepper</b></div>`)
	if got != "salt & pepper" {
		t.Errorf("StripTags = %q", got)
	}
}
