package apiflow_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	apiflow "github.com/Mohammad-abdo/DR-LOW-sub002"
)

func Example() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"patients":12}`)
	}))
	defer server.Close()

	client := apiflow.New(
		apiflow.WithBaseURL(server.URL),
		apiflow.WithCredentialStore(apiflow.NewMemoryCredentialStore("token")),
	)
	defer client.Close()

	resp, err := client.Get(context.Background(), "/dashboard/stats")
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	var stats struct {
		Patients int `json:"patients"`
	}
	if err := resp.Decode(&stats); err != nil {
		fmt.Println("decode:", err)
		return
	}
	fmt.Println(stats.Patients)
	// Output: 12
}
