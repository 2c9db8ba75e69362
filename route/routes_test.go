package route

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"coffeewifi/cache"
	"coffeewifi/config"
	"coffeewifi/controller"
	"coffeewifi/database"
	"coffeewifi/model"
	"coffeewifi/repository"
	"coffeewifi/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testKey = "TopSecretAPIKey"

type apiHarness struct {
	router *gin.Engine
	redis  *miniredis.Miniredis
}

func setupAPI(t *testing.T) *apiHarness {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	require.NoError(t, err)
	guard, err := utils.NewAPIKeyGuard("", string(hash))
	require.NoError(t, err)
	return setupAPIWithGuard(t, guard)
}

func setupAPIWithGuard(t *testing.T, guard *utils.APIKeyGuard) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.Database{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "cafes.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	cafeCache, err := cache.New(context.Background(), config.Redis{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cafeCache.Close() })

	ctl := controller.NewCafeController(repository.NewCafeRepository(db), cafeCache, zap.NewNop())
	return &apiHarness{
		router: NewRouter(ctl, guard, []string{"http://localhost:5001"}, zap.NewNop()),
		redis:  mr,
	}
}

func (h *apiHarness) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func addBody(name, location string) []byte {
	body, _ := json.Marshal(map[string]any{
		"cafe":         name,
		"map":          "https://maps.example/" + name,
		"image":        "https://img.example/" + name + ".jpg",
		"location":     location,
		"seats":        "20-30",
		"toilet":       "True",
		"wifi":         "False",
		"socket":       "True",
		"phone_call":   "False",
		"coffee_price": "£2.50",
		"open_time":    "8AM",
		"close_time":   "5PM",
		"submit":       true,
	})
	return body
}

func (h *apiHarness) all(t *testing.T) []model.Cafe {
	t.Helper()
	rec := h.do(t, http.MethodGet, "/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Cafes []model.Cafe `json:"cafes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Cafes
}

func (h *apiHarness) add(t *testing.T, name, location string) model.Cafe {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/add", addBody(name, location))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range h.all(t) {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cafe %q not listed after add", name)
	return model.Cafe{}
}

func TestEndToEndScenario(t *testing.T) {
	h := setupAPI(t)

	rec := h.do(t, http.MethodPost, "/add", addBody("Test Cafe", "London"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":{"Success":"Successfully added the new cafe."}}`, rec.Body.String())

	cafes := h.all(t)
	require.Len(t, cafes, 1)
	created := cafes[0]
	assert.True(t, created.HasToilet)
	assert.False(t, created.HasWifi)
	assert.True(t, created.HasSockets)
	assert.False(t, created.CanTakeCalls)

	rec = h.do(t, http.MethodPatch, "/update-price/"+itoa(created.ID)+"?new_price="+url.QueryEscape("£3.00"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":"Successfully updated the price."}`, rec.Body.String())

	cafes = h.all(t)
	require.Len(t, cafes, 1)
	want := created
	price := "£3.00"
	want.CoffeePrice = &price
	assert.Equal(t, want, cafes[0])

	rec = h.do(t, http.MethodDelete, "/report-closed/"+itoa(created.ID)+"?api-key="+testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":"Successfully deleted the cafe."}`, rec.Body.String())
	assert.Empty(t, h.all(t))
}

func TestRecordJSONUsesColumnNames(t *testing.T) {
	h := setupAPI(t)
	h.add(t, "Keys", "Leeds")

	rec := h.do(t, http.MethodGet, "/search?loc=Leeds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	cafe := out["cafe"]
	for _, key := range []string{"id", "name", "map_url", "img_url", "location", "seats", "has_toilet",
		"has_wifi", "has_sockets", "can_take_calls", "coffee_price", "open_time", "close_time"} {
		assert.Contains(t, cafe, key)
	}
	assert.Len(t, cafe, 13)
	assert.Equal(t, true, cafe["has_toilet"])
}

func TestAdd_DuplicateNameConflict(t *testing.T) {
	h := setupAPI(t)
	h.add(t, "Dup", "London")

	rec := h.do(t, http.MethodPost, "/add", addBody("Dup", "Paris"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	cafes := h.all(t)
	require.Len(t, cafes, 1)
	assert.Equal(t, "London", cafes[0].Location)
}

func TestAdd_RejectsBadFlagAndMissingFields(t *testing.T) {
	h := setupAPI(t)

	var body map[string]any
	require.NoError(t, json.Unmarshal(addBody("Bad", "London"), &body))
	body["wifi"] = "yes"
	raw, _ := json.Marshal(body)
	rec := h.do(t, http.MethodPost, "/add", raw)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	delete(body, "wifi")
	raw, _ = json.Marshal(body)
	rec = h.do(t, http.MethodPost, "/add", raw)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body["wifi"] = true
	body["cafe"] = ""
	raw, _ = json.Marshal(body)
	rec = h.do(t, http.MethodPost, "/add", raw)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, h.all(t))
}

func TestAdd_AcceptsJSONBooleans(t *testing.T) {
	h := setupAPI(t)

	var body map[string]any
	require.NoError(t, json.Unmarshal(addBody("Bools", "York"), &body))
	body["wifi"] = true
	body["toilet"] = false
	raw, _ := json.Marshal(body)
	rec := h.do(t, http.MethodPost, "/add", raw)
	require.Equal(t, http.StatusOK, rec.Code)

	cafes := h.all(t)
	require.Len(t, cafes, 1)
	assert.True(t, cafes[0].HasWifi)
	assert.False(t, cafes[0].HasToilet)
}

func TestSearch(t *testing.T) {
	h := setupAPI(t)
	first := h.add(t, "First", "London")
	h.add(t, "Second", "London")

	rec := h.do(t, http.MethodGet, "/search?loc=London", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Cafe model.Cafe `json:"cafe"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, first.ID, out.Cafe.ID)

	rec = h.do(t, http.MethodGet, "/search?loc=Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"Not Found":"Sorry, we don't have a cafe at that location"}}`, rec.Body.String())
}

func TestRandom(t *testing.T) {
	h := setupAPI(t)

	rec := h.do(t, http.MethodGet, "/random", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	only := h.add(t, "Only", "London")
	rec = h.do(t, http.MethodGet, "/random", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Cafe model.Cafe `json:"cafe"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, only, out.Cafe)
}

func TestUpdatePrice_NotFound(t *testing.T) {
	h := setupAPI(t)
	created := h.add(t, "Only", "London")

	for _, target := range []string{
		"/update-price/" + itoa(created.ID+10) + "?new_price=1.00",
		"/update-price/abc?new_price=1.00",
	} {
		rec := h.do(t, http.MethodPatch, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, `{"error":{"Not Found":"Sorry a Cafe with that id was not found in the database"}}`, rec.Body.String())
	}
	assert.Equal(t, []model.Cafe{created}, h.all(t))
}

func TestUpdatePrice_EmptyAndMissingValue(t *testing.T) {
	h := setupAPI(t)
	created := h.add(t, "Only", "London")
	target := "/update-price/" + itoa(created.ID)

	rec := h.do(t, http.MethodPatch, target+"?new_price=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cafes := h.all(t)
	require.Len(t, cafes, 1)
	require.NotNil(t, cafes[0].CoffeePrice)
	assert.Equal(t, "", *cafes[0].CoffeePrice)

	rec = h.do(t, http.MethodPatch, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cafes = h.all(t)
	require.Len(t, cafes, 1)
	assert.Nil(t, cafes[0].CoffeePrice)
}

func TestDelete_WrongKeyIsForbidden(t *testing.T) {
	h := setupAPI(t)
	created := h.add(t, "Only", "London")

	for _, id := range []uint{created.ID, created.ID + 10} {
		rec := h.do(t, http.MethodDelete, "/report-closed/"+itoa(id)+"?api-key=nope", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"Sorry, that's not allowed. Make sure you have the correct api-key"}`, rec.Body.String())
	}
	rec := h.do(t, http.MethodDelete, "/report-closed/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, []model.Cafe{created}, h.all(t))
}

func TestGuardedRoutes_RejectForgedKeys(t *testing.T) {
	longKey := strings.Repeat("k", 80)
	plain, err := utils.NewAPIKeyGuard(longKey, "")
	require.NoError(t, err)

	cases := map[string]struct {
		harness *apiHarness
		forged  []string
	}{
		"bcrypt hash": {
			harness: setupAPI(t),
			forged: []string{
				testKey + "\x00" + testKey,
				testKey + "\x00",
				strings.Repeat(testKey+"\x00", 5),
			},
		},
		"plain secret": {
			harness: setupAPIWithGuard(t, plain),
			forged: []string{
				longKey[:72],
				longKey + "\x00",
				longKey + "k",
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := tc.harness
			created := h.add(t, "Kept", "London")

			for _, key := range tc.forged {
				rec := h.do(t, http.MethodDelete, "/report-closed/"+itoa(created.ID)+"?api-key="+url.QueryEscape(key), nil)
				assert.Equal(t, http.StatusForbidden, rec.Code)
				rec = h.do(t, http.MethodPost, "/add/excel?api-key="+url.QueryEscape(key), nil)
				assert.Equal(t, http.StatusForbidden, rec.Code)
			}
			assert.Equal(t, []model.Cafe{created}, h.all(t))
		})
	}

	rec := cases["plain secret"].harness.do(t, http.MethodDelete, "/report-closed/1?api-key="+longKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDelete_RemovesExactlyOne(t *testing.T) {
	h := setupAPI(t)
	h.add(t, "A", "London")
	b := h.add(t, "B", "Paris")
	h.add(t, "C", "Rome")

	rec := h.do(t, http.MethodDelete, "/report-closed/"+itoa(b.ID)+"?api-key="+testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cafes := h.all(t)
	assert.Len(t, cafes, 2)
	for _, c := range cafes {
		assert.NotEqual(t, b.ID, c.ID)
	}

	rec = h.do(t, http.MethodDelete, "/report-closed/"+itoa(b.ID)+"?api-key="+testKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAll_CacheInvalidatedOnWrite(t *testing.T) {
	h := setupAPI(t)
	h.add(t, "A", "London")
	assert.True(t, h.redis.Exists("cafes:all"))

	rec := h.do(t, http.MethodPost, "/add", addBody("B", "Paris"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, h.redis.Exists("cafes:all"))
	assert.Len(t, h.all(t), 2)
}

func TestHealth(t *testing.T) {
	h := setupAPI(t)
	rec := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExcelExportThenImport(t *testing.T) {
	src := setupAPI(t)
	src.add(t, "Sheet Cafe", "London")
	src.add(t, "Other Cafe", "Paris")

	rec := src.do(t, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cafes.xlsx")

	// Append one invalid row to the exported workbook.
	xl, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	bad := []interface{}{"Broken", "m", "i", "Oslo", "10", "maybe", "True", "True", "True", "", "8AM", "5PM"}
	require.NoError(t, xl.SetSheetRow("Cafes", "A4", &bad))
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)

	dst := setupAPI(t)
	dst.add(t, "Other Cafe", "Elsewhere")

	upload := func(key string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "cafes.xlsx")
		require.NoError(t, err)
		_, err = part.Write(buf.Bytes())
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/add/excel?api-key="+key, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		out := httptest.NewRecorder()
		dst.router.ServeHTTP(out, req)
		return out
	}

	assert.Equal(t, http.StatusForbidden, upload("wrong").Code)

	rec = upload(testKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Imported)
	assert.Equal(t, 2, out.Skipped)

	cafes := dst.all(t)
	require.Len(t, cafes, 2)
	assert.Equal(t, "Sheet Cafe", cafes[1].Name)
	assert.True(t, cafes[1].HasToilet)
	require.NotNil(t, cafes[1].CoffeePrice)
	assert.Equal(t, "£2.50", *cafes[1].CoffeePrice)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
