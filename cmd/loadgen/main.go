// Command loadgen drives the escrow core with concurrent create/confirm
// cycles against in-memory adapters and reports throughput.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trustmesh/escrow-engine/internal/adapter/accesscontrol"
	"github.com/trustmesh/escrow-engine/internal/adapter/gateway"
	"github.com/trustmesh/escrow-engine/internal/adapter/storage"
	"github.com/trustmesh/escrow-engine/internal/core/fee"
	"github.com/trustmesh/escrow-engine/internal/core/service"
)

const (
	workers       = 16
	ordersPerUser = 200
	feeRate       = 4
	principal     = 1000
)

func main() {
	ctx := context.Background()

	memory := storage.NewMemory()
	ledger := gateway.NewMemoryLedger()
	access := accesscontrol.NewStatic(nil, nil)

	escrow := service.NewEscrowService(service.Deps{
		Store:   memory,
		Vault:   memory,
		Journal: memory,
		Assets:  ledger,
		Access:  access,
		Policy:  fee.NewPolicy(feeRate),
	})

	token := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	amount := big.NewInt(principal)
	// Amounts grow per iteration (see below), so fund each sender for the
	// worst case with room to spare.
	funding := big.NewInt(int64(ordersPerUser) * int64(principal+1000*ordersPerUser) * 2)

	var created, confirmed, failed atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()

			sender := common.BigToAddress(big.NewInt(int64(0x1000 + w)))
			recipient := common.BigToAddress(big.NewInt(int64(0x2000 + w)))
			ledger.Mint(token, sender, funding)
			ledger.Approve(token, sender, funding)

			for i := 0; i < ordersPerUser; i++ {
				// Ids hash the creation second; vary the amount per
				// iteration so same-second orders stay distinct.
				amt := new(big.Int).Add(amount, big.NewInt(int64(i*1000)))
				f := new(big.Int).Div(amt, big.NewInt(1000))
				f.Mul(f, big.NewInt(feeRate))

				id, draftAt, err := escrow.CreateOrder(ctx, sender, token, "LOAD", recipient, amt, f, fmt.Sprintf("loadgen-%d-%d", w, i))
				if err != nil {
					failed.Add(1)
					continue
				}
				created.Add(1)

				if err := escrow.ConfirmOrder(ctx, sender, token, "LOAD", recipient, amt, f, draftAt); err != nil {
					failed.Add(1)
					log.Printf("confirm %s: %v", id, err)
					continue
				}
				confirmed.Add(1)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := created.Load() + confirmed.Load()
	fmt.Printf("created:   %d\n", created.Load())
	fmt.Printf("confirmed: %d\n", confirmed.Load())
	fmt.Printf("failed:    %d\n", failed.Load())
	fmt.Printf("elapsed:   %s (%.0f ops/sec)\n", elapsed, float64(total)/elapsed.Seconds())
}
