package driver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
)

// fakeDriver is a minimal stand-in for a solver driver's /solve, /reveal,
// /settle HTTP surface, routed with gorilla/mux the way a hand-rolled test
// fixture for this protocol would be.
type fakeDriver struct {
	solveResp  solveResponse
	solveCode  int
	revealResp revealResponse
	settleResp settleResponse
}

func (f *fakeDriver) server() *httptest.Server {
	r := mux.NewRouter()
	r.HandleFunc("/solve", func(w http.ResponseWriter, req *http.Request) {
		if f.solveCode != 0 && f.solveCode != http.StatusOK {
			w.WriteHeader(f.solveCode)
			return
		}
		_ = json.NewEncoder(w).Encode(f.solveResp)
	}).Methods(http.MethodPost)
	r.HandleFunc("/reveal", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(f.revealResp)
	}).Methods(http.MethodPost)
	r.HandleFunc("/settle", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(f.settleResp)
	}).Methods(http.MethodPost)
	return httptest.NewServer(r)
}

func testAuction() *domain.Auction {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	return &domain.Auction{
		ID:    1,
		Block: 100,
		Prices: map[common.Address]*uint256.Int{
			token: uint256.NewInt(1),
		},
		Orders: []domain.AuctionOrder{
			{Order: domain.Order{
				SellToken:  token,
				BuyToken:   token,
				SellAmount: uint256.NewInt(10),
				BuyAmount:  uint256.NewInt(10),
				FeeAmount:  uint256.NewInt(0),
				Filled:     uint256.NewInt(0),
			}},
		},
	}
}

func TestClientSolveParsesBestSolutions(t *testing.T) {
	f := &fakeDriver{solveResp: solveResponse{Solutions: []wireSolution{
		{SolutionID: "1", Score: "100", SubmissionAddress: "0x1111111111111111111111111111111111111111"},
		{SolutionID: "2", Score: "500", SubmissionAddress: "0x2222222222222222222222222222222222222222"},
	}}}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	solutions, err := c.Solve(context.Background(), testAuction(), time.Now().Add(time.Second), uint256.NewInt(0), nil)
	require.NoError(t, err)
	require.Len(t, solutions, 2)
}

func TestClientSolveNoSolutionsIsError(t *testing.T) {
	f := &fakeDriver{solveResp: solveResponse{}}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	_, err := c.Solve(context.Background(), testAuction(), time.Now().Add(time.Second), uint256.NewInt(0), nil)
	require.ErrorIs(t, err, domain.ErrNoSolutions)
}

func TestClientSolveSkipsMalformedScore(t *testing.T) {
	f := &fakeDriver{solveResp: solveResponse{Solutions: []wireSolution{
		{SolutionID: "1", Score: "not-a-number"},
		{SolutionID: "2", Score: "42"},
	}}}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	solutions, err := c.Solve(context.Background(), testAuction(), time.Now().Add(time.Second), uint256.NewInt(0), nil)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	require.Equal(t, domain.SolutionID(2), solutions[0].ID)
}

func TestClientReveal(t *testing.T) {
	f := &fakeDriver{revealResp: revealResponse{Calldata: wireCalldata{
		Internalized:   "0xdeadbeef",
		Uninternalized: "0xcafebabe",
	}}}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	calldata, err := c.Reveal(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, calldata.Internalized)
	require.Equal(t, []byte{0xca, 0xfe, 0xba, 0xbe}, calldata.Uninternalized)
}

func TestClientRevealMalformedCalldataWrapsErrReveal(t *testing.T) {
	f := &fakeDriver{revealResp: revealResponse{Calldata: wireCalldata{Internalized: "not-hex"}}}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	_, err := c.Reveal(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrReveal)
}

func TestClientSettle(t *testing.T) {
	f := &fakeDriver{settleResp: settleResponse{
		TxHash:   "0x" + "11",
		Calldata: wireCalldata{Internalized: "0x01", Uninternalized: "0x02"},
	}}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	txHash, calldata, err := c.Settle(context.Background(), 1, time.Second)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x11"), txHash)
	require.Equal(t, []byte{0x01}, calldata.Internalized)
}

func TestClientSolveHTTPErrorStatus(t *testing.T) {
	f := &fakeDriver{solveCode: http.StatusInternalServerError}
	srv := f.server()
	defer srv.Close()

	c := New(domain.Driver{Name: "solver1", URL: srv.URL}, srv.Client(), time.Second)
	_, err := c.Solve(context.Background(), testAuction(), time.Now().Add(time.Second), uint256.NewInt(0), nil)
	require.Error(t, err)
}
