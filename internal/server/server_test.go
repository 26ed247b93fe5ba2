package server

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiesman99/tile_extractor/pkg/tile"
)

// Test server setup
func setupTestServer(cfg Config) *httptest.Server {
	return httptest.NewServer(NewServer("1.0-test", nil, cfg).Handler(30 * time.Second))
}

// testTileset returns a PNG of 3x2 tiles of 4x4 pixels. Tiles 0, 2 and 4 are
// solid red, tile 1 is solid blue and tiles 3 and 5 are patterned.
func testTileset(t *testing.T) []byte {
	t.Helper()

	const cols, rows, size = 3, 2, 4
	w, h := cols*size, rows*size
	buf := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			id := (y/size)*cols + x/size
			var p [4]byte
			switch id {
			case 1:
				p = [4]byte{0, 0, 0xff, 0xff}
			case 3, 5:
				p = [4]byte{byte(x * 10), byte(y * 10), 0x40, 0xff}
			default:
				p = [4]byte{0xff, 0, 0, 0xff}
			}
			copy(buf[(y*w+x)*4:], p[:])
		}
	}

	var out bytes.Buffer
	if err := tile.EncodePNG(&out, buf, w, h); err != nil {
		t.Fatalf("Failed to encode tileset: %v", err)
	}
	return out.Bytes()
}

// hugePNG returns just the signature and IHDR chunk of a PNG declaring
// width x height RGBA pixels.
func hugePNG(width, height uint32) []byte {
	var b bytes.Buffer
	b.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], width)
	binary.BigEndian.PutUint32(chunk[8:], height)
	chunk[12] = 8
	chunk[13] = 6

	binary.Write(&b, binary.BigEndian, uint32(13))
	b.Write(chunk)
	binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return b.Bytes()
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(Config{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if healthResp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got %s", healthResp.Status)
	}
	if healthResp.Version != "1.0-test" {
		t.Errorf("Expected version '1.0-test', got %v", healthResp.Version)
	}
	if healthResp.Uptime < 0 {
		t.Errorf("Expected valid uptime, got %v", healthResp.Uptime)
	}
	if time.Since(healthResp.Timestamp) > time.Minute {
		t.Errorf("Timestamp seems too old: %v", healthResp.Timestamp)
	}
}

func TestLegacyHealthRedirect(t *testing.T) {
	server := setupTestServer(Config{})
	defer server.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Errorf("Expected status 301, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/api/v1/health" {
		t.Errorf("Expected redirect to /api/v1/health, got %s", loc)
	}
}

func TestExtractEndpoint_Success(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			server := setupTestServer(Config{Workers: workers})
			defer server.Close()

			resp, err := http.Post(server.URL+"/api/v1/extract?tile_width=4&tile_height=4",
				"image/png", bytes.NewReader(testTileset(t)))
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("Failed to read response body: %v", err)
			}

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
				t.Errorf("Expected Content-Type application/zip, got %s", ct)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("Expected X-Request-ID header")
			}

			wantHeaders := map[string]string{
				"X-Tiles-Total":   "6",
				"X-Tiles-Saved":   "4",
				"X-Tiles-Skipped": "2",
				"X-Tiles-Failed":  "0",
			}
			for k, want := range wantHeaders {
				if got := resp.Header.Get(k); got != want {
					t.Errorf("Expected %s %s, got %s", k, want, got)
				}
			}

			zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
			if err != nil {
				t.Fatalf("Response is not a zip archive: %v", err)
			}

			wantFiles := []string{"tile0.png", "tile1.png", "tile3.png", "tile5.png"}
			if len(zr.File) != len(wantFiles) {
				t.Fatalf("Expected %d files, got %d", len(wantFiles), len(zr.File))
			}
			for i, f := range zr.File {
				if f.Name != wantFiles[i] {
					t.Errorf("Expected file %d to be %s, got %s", i, wantFiles[i], f.Name)
				}
				rc, err := f.Open()
				if err != nil {
					t.Fatalf("Failed to open %s: %v", f.Name, err)
				}
				cfg, err := png.DecodeConfig(rc)
				rc.Close()
				if err != nil {
					t.Fatalf("%s is not a PNG: %v", f.Name, err)
				}
				if cfg.Width != 4 || cfg.Height != 4 {
					t.Errorf("%s is %dx%d, want 4x4", f.Name, cfg.Width, cfg.Height)
				}
			}
		})
	}
}

func TestExtractEndpoint_Errors(t *testing.T) {
	testCases := []struct {
		name           string
		query          string
		body           []byte
		maxUpload      int64
		maxPixels      int64
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Missing tile_width",
			query:          "tile_height=4",
			expectedStatus: http.StatusBadRequest,
			expectedError:  CodeValidation,
		},
		{
			name:           "Non-numeric tile_height",
			query:          "tile_width=4&tile_height=abc",
			expectedStatus: http.StatusBadRequest,
			expectedError:  CodeValidation,
		},
		{
			name:           "Zero tile width",
			query:          "tile_width=0&tile_height=4",
			expectedStatus: http.StatusBadRequest,
			expectedError:  CodeValidation,
		},
		{
			name:           "Body is not an image",
			query:          "tile_width=4&tile_height=4",
			body:           []byte("definitely not a png"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  CodeDecode,
		},
		{
			name:           "Body too large",
			query:          "tile_width=4&tile_height=4",
			maxUpload:      16,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  CodeTooLarge,
		},
		{
			name:           "Declared dimensions over the default cap",
			query:          "tile_width=4&tile_height=4",
			body:           hugePNG(50000, 50000),
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  CodeTooLarge,
		},
		{
			name:           "Tileset area over a configured cap",
			query:          "tile_width=4&tile_height=4",
			maxPixels:      8,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  CodeTooLarge,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := setupTestServer(Config{MaxUpload: tc.maxUpload, MaxPixels: tc.maxPixels})
			defer server.Close()

			body := tc.body
			if body == nil {
				body = testTileset(t)
			}

			resp, err := http.Post(server.URL+"/api/v1/extract?"+tc.query, "image/png", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.expectedStatus {
				b, _ := io.ReadAll(resp.Body)
				t.Fatalf("Expected status %d, got %d. Body: %s", tc.expectedStatus, resp.StatusCode, string(b))
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if errResp.Error != tc.expectedError {
				t.Errorf("Expected error %s, got %s", tc.expectedError, errResp.Error)
			}
			if errResp.RequestID == "" {
				t.Error("Expected request ID in error response")
			}
		})
	}
}

func TestExtractEndpoint_MethodNotAllowed(t *testing.T) {
	server := setupTestServer(Config{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/extract?tile_width=4&tile_height=4")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}
