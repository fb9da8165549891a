package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	BaseURL     = "http://localhost:8080"
	AccountID   = 1
	TotalCount  = 100000
	Concurrency = 200
)

// 對同一個帳戶打滿並發扣帳，驗證吞吐與餘額不變式
// 事前先建立帳戶並入帳足夠的額度
func main() {
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	wg.Add(TotalCount)

	sem := make(chan struct{}, Concurrency)

	var succeeded, insufficient, failed int64

	startTime := time.Now()

	for i := 0; i < TotalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			body, _ := json.Marshal(map[string]string{
				"amount":      "1",
				"description": "loadtest",
				"ref_id":      uuid.New().String(),
			})
			url := fmt.Sprintf("%s/accounts/%d/debit", BaseURL, AccountID)
			resp, err := client.Post(url, "application/json", bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&failed, 1)
				if idx%10000 == 0 {
					log.Printf("debit %d failed: %v", idx, err)
				}
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&succeeded, 1)
			case http.StatusUnprocessableEntity:
				atomic.AddInt64(&insufficient, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v\n", TotalCount, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(TotalCount)/elapsed.Seconds())
	fmt.Printf("succeeded=%d insufficient=%d failed=%d\n", succeeded, insufficient, failed)
}
