package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/heropets/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdoptions_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s.r, "Ana", "a@x.com")
	petID := createPet(t, s.r, token, "Rex")
	heroID := createHero(t, s.r, "Superman")

	w := doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": heroID}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a model.Adoption
	decode(t, w, &a)
	assert.EqualValues(t, 1, a.ID)
	assert.Equal(t, petID, a.PetID)
	assert.Equal(t, heroID, a.HeroID)
	assert.False(t, a.Date.IsZero())

	w = doRequest(s.r, http.MethodGet, "/api/adoptions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	type named struct {
		Name string `json:"name"`
	}
	var views []struct {
		ID   int64  `json:"id"`
		Pet  *named `json:"pet"`
		Hero *named `json:"hero"`
	}
	decode(t, w, &views)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Pet)
	require.NotNil(t, views[0].Hero)
	assert.Equal(t, "Rex", views[0].Pet.Name)
	assert.Equal(t, "Superman", views[0].Hero.Name)
}

func TestAdoptions_DoubleAdoptionConflict(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s.r, "Ana", "a@x.com")
	petID := createPet(t, s.r, token, "Rex")
	h1 := createHero(t, s.r, "Superman")
	h2 := createHero(t, s.r, "Batman")

	require.Equal(t, http.StatusCreated,
		doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": h1}, token).Code)
	w := doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": h2}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already adopted")

	var n int64
	s.db.Model(&model.Adoption{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestAdoptions_OtherUsersPet(t *testing.T) {
	s := newTestServer(t)
	ana := registerAndLogin(t, s.r, "Ana", "a@x.com")
	bob := registerAndLogin(t, s.r, "Bob", "b@x.com")
	petID := createPet(t, s.r, ana, "Rex")
	heroID := createHero(t, s.r, "Superman")

	w := doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": heroID}, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": 99}, ana)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdoptions_DeleteFreesPet(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s.r, "Ana", "a@x.com")
	petID := createPet(t, s.r, token, "Rex")
	h1 := createHero(t, s.r, "Superman")
	h2 := createHero(t, s.r, "Batman")
	require.Equal(t, http.StatusCreated,
		doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": h1}, token).Code)

	require.Equal(t, http.StatusOK, doRequest(s.r, http.MethodDelete, "/api/adoptions/1", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(s.r, http.MethodDelete, "/api/adoptions/1", nil, token).Code)

	w := doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": h2}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a model.Adoption
	decode(t, w, &a)
	assert.EqualValues(t, 2, a.ID)
}

func TestAdoptions_UpdateMovesSponsor(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s.r, "Ana", "a@x.com")
	petID := createPet(t, s.r, token, "Rex")
	h1 := createHero(t, s.r, "Superman")
	h2 := createHero(t, s.r, "Batman")
	require.Equal(t, http.StatusCreated,
		doRequest(s.r, http.MethodPost, "/api/adoptions", map[string]int64{"petId": petID, "heroId": h1}, token).Code)

	w := doRequest(s.r, http.MethodPut, "/api/adoptions/1", map[string]int64{"heroId": h2}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(s.r, http.MethodGet, fmt.Sprintf("/api/superheroes/%d/mascotas", h2), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var pets []map[string]interface{}
	decode(t, w, &pets)
	require.Len(t, pets, 1)
	assert.Equal(t, "Rex", pets[0]["name"])
}
