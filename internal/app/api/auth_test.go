package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/internal/domains/entities"
)

func TestRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/contacts/friends", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing access token", errorOf(t, w))

	req := httptest.NewRequest(http.MethodGet, "/api/contacts/friends", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid access token", errorOf(t, w))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("abc"))
}

func TestRegister(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/register", "", dtos.RegisterRequest{
		Email:       "dave@example.com",
		Password:    "Secret123!",
		Name:        "Dave",
		PhoneNumber: "+84900000000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.identity.registered, 1)
	assert.Equal(t, "Dave", f.identity.registered[0].Name)

	w = f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterSurfacesProviderRejection(t *testing.T) {
	f := newAPIFixture(t)
	f.identity.signUpErr = &smithy.GenericAPIError{
		Code:    "UsernameExistsException",
		Message: "An account with the given email already exists.",
		Fault:   smithy.FaultClient,
	}

	w := f.do(t, http.MethodPost, "/api/auth/register", "", dtos.RegisterRequest{
		Email:       "alice@example.com",
		Password:    "Secret123!",
		Name:        "Alice",
		PhoneNumber: "+84900000000",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "An account with the given email already exists.", errorOf(t, w))
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/login", "", dtos.LoginRequest{Username: "A", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	decodeBody(t, w, &body)
	assert.Equal(t, "token-A", body["accessToken"])
}

func TestGetUser(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/auth/user", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var self dtos.UserResponse
	decodeBody(t, w, &self)
	assert.Equal(t, "alice@example.com", self.Email)

	w = f.do(t, http.MethodGet, "/api/auth/user/B", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var other dtos.UserResponse
	decodeBody(t, w, &other)
	assert.Equal(t, "Bob", other.Name)
	assert.Empty(t, other.Email)

	w = f.do(t, http.MethodGet, "/api/auth/user/nobody", "A", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func multipartRequest(t *testing.T, path, field, fileName, contentType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	if field != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpdateUser(t *testing.T) {
	f := newAPIFixture(t)

	req := multipartRequest(t, "/api/auth/update-user", "picture", "me.png", "image/png", []byte("png"), map[string]string{"name": "Alicia"})
	req.Header.Set("Authorization", "Bearer token-A")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"avatars/me.png"}, f.media.uploads)
	var user dtos.UserResponse
	decodeBody(t, w, &user)
	assert.Equal(t, "Alicia", user.Name)
	assert.Equal(t, "https://media.example.com/avatars/me.png", user.Picture)
}

func TestUpdateUserRejectsPicture(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		size        int
	}{
		{"wrong type", "application/pdf", 10},
		{"too large", "image/jpeg", maxAvatarSize + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t)
			req := multipartRequest(t, "/api/auth/update-user", "picture", "me.bin", tc.contentType, make([]byte, tc.size), nil)
			req.Header.Set("Authorization", "Bearer token-A")
			w := httptest.NewRecorder()
			f.engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, f.media.uploads)
		})
	}
}

func TestUploadAndDevices(t *testing.T) {
	f := newAPIFixture(t)

	req := multipartRequest(t, "/api/upload", "file", "clip.mp4", "video/mp4", []byte("mp4"), nil)
	req.Header.Set("Authorization", "Bearer token-A")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]string
	decodeBody(t, w, &body)
	assert.Equal(t, "video", body["type"])
	assert.Equal(t, "https://media.example.com/attachments/clip.mp4", body["url"])

	w = f.do(t, http.MethodPut, "/api/devices", "A", dtos.DeviceRegisterRequest{EndpointArn: "arn:aws:sns:endpoint/a", DeviceToken: "fcm-a", Platform: "GCM"})
	require.Equal(t, http.StatusOK, w.Code)
	endpoint := f.store.endpoints["A"]
	assert.Equal(t, "arn:aws:sns:endpoint/a", endpoint.EndpointArn)
	assert.Equal(t, "fcm-a", endpoint.DeviceToken)
	assert.Equal(t, "GCM", endpoint.Platform)
}

func TestRegisterDeviceIgnoresStaleRegistration(t *testing.T) {
	f := newAPIFixture(t)
	f.store.endpoints["A"] = entities.ApplicationEndpoint{
		UserId:      "A",
		EndpointArn: "arn:aws:sns:endpoint/newer",
		UpdatedAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	w := f.do(t, http.MethodPut, "/api/devices", "A", dtos.DeviceRegisterRequest{EndpointArn: "arn:aws:sns:endpoint/older"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "arn:aws:sns:endpoint/newer", f.store.endpoints["A"].EndpointArn)
}
