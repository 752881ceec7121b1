// This is a http type of reporter.
// It reads drops and drips from the store database
// and publishes them on the http routes.

package reporter

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
	"github.com/premier-io/drops-go/store"
)

const (
	ROUTE_HELLO      = "/hello"
	ROUTE_DROPS      = "/drops"
	ROUTE_DROP       = "/drops/:dropId"
	ROUTE_DRIP       = "/drops/:dropId/drips/:dripId"
	ROUTE_OWNER      = "/drops/:dropId/owners/:account"
	ROUTE_INTERFACES = "/drops/:dropId/interfaces/:tokenContract"
)

// StoreReader is the read side of a store.
type StoreReader interface {
	Drops() ([]*drop.DropInfo, error)
	DropInfo(dropId uint64) (*drop.DropInfo, error)
	DripInfo(dropId, dripId uint64) (*drop.DripInfo, error)
	BalanceOf(dropId uint64, account common.Address) (uint64, error)
	GetTokenContractInterface(dropId uint64, tokenContract common.Address) (common.Address, error)
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data source
	store StoreReader
}

func NewHttpReporter(serverIP string, serverPort string, st StoreReader) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		store:      st,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_DROPS, h.Drops)
	router.GET(ROUTE_DROP, h.Drop)
	router.GET(ROUTE_DRIP, h.Drip)
	router.GET(ROUTE_OWNER, h.Owner)
	router.GET(ROUTE_INTERFACES, h.Interface)

	return router
}

// Server returns the http server for the reporter routes. The caller
// runs and shuts it down.
func (h *HttpReporter) Server() *http.Server {
	return &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}
}

func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) Drops(c *gin.Context) {
	drops, err := h.store.Drops()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": drops})
}

func (h *HttpReporter) Drop(c *gin.Context) {
	dropId, ok := uintParam(c, "dropId")
	if !ok {
		return
	}

	info, err := h.store.DropInfo(dropId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}

func (h *HttpReporter) Drip(c *gin.Context) {
	dropId, ok := uintParam(c, "dropId")
	if !ok {
		return
	}
	dripId, ok := uintParam(c, "dripId")
	if !ok {
		return
	}

	info, err := h.store.DripInfo(dropId, dripId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}

func (h *HttpReporter) Owner(c *gin.Context) {
	dropId, ok := uintParam(c, "dropId")
	if !ok {
		return
	}
	account, ok := addressParam(c, "account")
	if !ok {
		return
	}

	balance, err := h.store.BalanceOf(dropId, account)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"account": account.Hex(),
		"balance": balance,
	}})
}

func (h *HttpReporter) Interface(c *gin.Context) {
	dropId, ok := uintParam(c, "dropId")
	if !ok {
		return
	}
	tokenContract, ok := addressParam(c, "tokenContract")
	if !ok {
		return
	}

	verifierId, err := h.store.GetTokenContractInterface(dropId, tokenContract)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"tokenContract": tokenContract.Hex(),
		"verifierId":    verifierId.Hex(),
	}})
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func addressParam(c *gin.Context, name string) (common.Address, bool) {
	addr, err := common.ParseAddress(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return common.Address{}, false
	}
	return addr, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidDropId), errors.Is(err, drop.ErrInvalidDripId):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
