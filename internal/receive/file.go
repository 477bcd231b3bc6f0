package receive

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

// ReceiveFile streams the resource at descriptor.URL into localFile.
func (e *Engine) ReceiveFile(ctx context.Context, localFile string, descriptor *access.Descriptor) error {
	options, err := e.options(descriptor, transport.MethodGet)
	if err != nil {
		return err
	}
	fetcher, err := transport.Open(descriptor.URL, options)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	if err := fetcher.FetchToFile(ctx, descriptor.URL, localFile); err != nil {
		return err
	}
	e.Logger.Info("file received", "url", descriptor.RedactedURL(), "path", localFile)
	return nil
}

// ReceiveDocument fetches the JSON document at descriptor.URL and writes
// it to localFile.
func (e *Engine) ReceiveDocument(ctx context.Context, localFile string, descriptor *access.Descriptor) error {
	client, err := e.openHTTP(descriptor, transport.MethodGet)
	if err != nil {
		return err
	}
	defer client.Close()

	document, err := client.FetchDocument(ctx, descriptor.URL)
	if err != nil {
		return err
	}
	data, err := json.Marshal(document)
	if err != nil {
		return connerr.Validation("encoding document: %w", err)
	}
	if err := os.WriteFile(localFile, data, 0o644); err != nil {
		return connerr.Filesystem("writing %s: %w", localFile, err)
	}
	e.Logger.Info("document received", "url", descriptor.RedactedURL(), "path", localFile, "bytes", len(data))
	return nil
}

// SendFile streams localFile to descriptor.URL, by default with POST.
func (e *Engine) SendFile(ctx context.Context, localFile string, descriptor *access.Descriptor) error {
	client, err := e.openHTTP(descriptor, transport.MethodPost)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SendFile(ctx, descriptor.URL, localFile); err != nil {
		return err
	}
	e.Logger.Info("file sent", "url", descriptor.RedactedURL(), "path", localFile, "method", client.Method())
	return nil
}

// SendDocument parses localFile as JSON and sends it to descriptor.URL,
// by default with POST.
func (e *Engine) SendDocument(ctx context.Context, localFile string, descriptor *access.Descriptor) error {
	client, err := e.openHTTP(descriptor, transport.MethodPost)
	if err != nil {
		return err
	}
	defer client.Close()

	data, err := os.ReadFile(localFile)
	if err != nil {
		return connerr.Filesystem("reading %s: %w", localFile, err)
	}
	document, err := transport.DecodeDocument(bytes.NewReader(data))
	if err != nil {
		return connerr.Validation("%s is not valid JSON: %w", localFile, err)
	}

	if err := client.SendDocument(ctx, descriptor.URL, document); err != nil {
		return err
	}
	e.Logger.Info("document sent", "url", descriptor.RedactedURL(), "path", localFile, "method", client.Method())
	return nil
}
