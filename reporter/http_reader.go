// Reader is a client for the routes of a http reporter.

package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
)

type HttpReader struct {
	baseURL string
	client  *http.Client
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return NewHttpReaderWithURL("http://" + serverIP + ":" + serverPort)
}

// NewHttpReaderWithURL reads from a reporter at baseURL, e.g. the URL of
// an httptest server.
func NewHttpReaderWithURL(baseURL string) *HttpReader {
	return &HttpReader{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Message)
}

func (hr *HttpReader) GetHello() (string, error) {
	body, err := hr.get(ROUTE_HELLO)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (hr *HttpReader) GetDrops() ([]*drop.DropInfo, error) {
	var drops []*drop.DropInfo
	if err := hr.getData(ROUTE_DROPS, &drops); err != nil {
		return nil, err
	}
	return drops, nil
}

func (hr *HttpReader) GetDrop(dropId uint64) (*drop.DropInfo, error) {
	info := &drop.DropInfo{}
	if err := hr.getData(ROUTE_DROPS+"/"+strconv.FormatUint(dropId, 10), info); err != nil {
		return nil, err
	}
	return info, nil
}

func (hr *HttpReader) GetDrip(dropId, dripId uint64) (*drop.DripInfo, error) {
	info := &drop.DripInfo{}
	path := fmt.Sprintf("%s/%d/drips/%d", ROUTE_DROPS, dropId, dripId)
	if err := hr.getData(path, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (hr *HttpReader) GetBalance(dropId uint64, account common.Address) (uint64, error) {
	var data struct {
		Balance uint64 `json:"balance"`
	}
	path := fmt.Sprintf("%s/%d/owners/%s", ROUTE_DROPS, dropId, account.Hex())
	if err := hr.getData(path, &data); err != nil {
		return 0, err
	}
	return data.Balance, nil
}

func (hr *HttpReader) GetTokenContractInterface(dropId uint64, tokenContract common.Address) (common.Address, error) {
	var data struct {
		VerifierId string `json:"verifierId"`
	}
	path := fmt.Sprintf("%s/%d/interfaces/%s", ROUTE_DROPS, dropId, tokenContract.Hex())
	if err := hr.getData(path, &data); err != nil {
		return common.Address{}, err
	}
	return common.ParseAddress(data.VerifierId)
}

// getData decodes the "data" member of the response into out.
func (hr *HttpReader) getData(path string, out interface{}) error {
	body, err := hr.get(path)
	if err != nil {
		return err
	}

	resp := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	return json.Unmarshal(resp.Data, out)
}

func (hr *HttpReader) get(path string) ([]byte, error) {
	resp, err := hr.client.Get(hr.baseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		e := struct {
			Error string `json:"error"`
		}{}
		_ = json.Unmarshal(body, &e)
		return nil, &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	return body, nil
}
