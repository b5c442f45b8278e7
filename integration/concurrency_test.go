package integration

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentPetCreation_DistinctIDs(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.NewUser(t, "burst")

	const n = 20
	ids := make([]int64, n)
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := ts.PostJSON(t, "/api/pets", map[string]interface{}{
				"name": fmt.Sprintf("pet%d", i), "type": "cat", "age": 1,
			}, token)
			codes[i] = resp.StatusCode
			var out struct {
				ID int64 `json:"id"`
			}
			ReadJSON(t, resp, &out)
			ids[i] = out.ID
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		require.Equal(t, http.StatusCreated, code, "request %d", i)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for i, id := range ids {
		assert.EqualValues(t, i+1, id)
	}
}

func TestConcurrentAdoption_OneWinner(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.NewUser(t, "race")
	petID := ts.CreatePet(t, token, "Rex")
	heroes := []int64{ts.CreateHero(t, "Superman"), ts.CreateHero(t, "Batman")}

	codes := make([]int, len(heroes))
	var wg sync.WaitGroup
	for i, heroID := range heroes {
		wg.Add(1)
		go func(i int, heroID int64) {
			defer wg.Done()
			codes[i] = Status(ts.PostJSON(t, "/api/adoptions", map[string]int64{"petId": petID, "heroId": heroID}, token))
		}(i, heroID)
	}
	wg.Wait()

	sort.Ints(codes)
	assert.Equal(t, []int{http.StatusCreated, http.StatusConflict}, codes)
}

func TestConcurrentFeeding_NoLostEvents(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.NewUser(t, "feeder")
	petID := ts.CreatePet(t, token, "Rex")

	const n = 10
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = Status(ts.Put(t, fmt.Sprintf("/api/mascotas/%d/pasear", petID), nil, token))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		require.Contains(t, []int{http.StatusOK, http.StatusConflict}, code)
		if code == http.StatusOK {
			ok++
		}
	}

	resp := ts.Get(t, fmt.Sprintf("/api/mascotas/%d/historial", petID), token)
	var hist struct {
		Status struct {
			Happiness int `json:"happiness"`
		} `json:"status"`
		History []map[string]interface{} `json:"history"`
	}
	ReadJSON(t, resp, &hist)
	// Every accepted walk left exactly one event and one +10.
	assert.Len(t, hist.History, ok)
	assert.Equal(t, min(50+10*ok, 100), hist.Status.Happiness)
}
