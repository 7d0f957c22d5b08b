package ipc

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"resty.dev/v3"
)

func newClient() *resty.Client {
	path := SocketPath()

	client := resty.NewWithClient(&http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", path)
			},
		},
	})

	client.SetBaseURL("http://driftpaper")
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "driftpaper")

	return client
}

func post(path, display string) error {
	req := newClient().R()
	if display != "" {
		req.SetQueryParam("display", display)
	}
	response, err := req.Post(path)
	if err != nil {
		return err
	}
	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("error sending command: %s", response.Status())
	}
	return nil
}

// SendStatus asks the running daemon for its status. An error means no
// daemon is listening on the socket.
func SendStatus() (*StatusResponse, error) {
	result := StatusResponse{}
	response, err := newClient().R().SetResult(&result).Get("/status")
	if err != nil {
		return nil, err
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("error fetching status: %s", response.Status())
	}
	return &result, nil
}

func SendStop() error {
	return post("/stop", "")
}

// SendNext rotates the named display, or all displays when empty.
func SendNext(display string) error {
	return post("/next", display)
}

func SendPrevious(display string) error {
	return post("/previous", display)
}

func SendReload() error {
	return post("/reload", "")
}
