package integration

import (
	"net/http"
	"testing"
)

func TestAuthFlow_RegisterLoginProfile(t *testing.T) {
	app := setupApp(t)

	// Step 1: Register
	token, userID := app.registerUser(t, "auth@test.com", "password123")
	if token == "" || userID == "" {
		t.Fatal("expected token and user ID from registration")
	}

	// Step 2: Login with same credentials
	loginToken := app.loginUser(t, "auth@test.com", "password123")
	if loginToken == "" {
		t.Fatal("expected non-empty token from login")
	}

	// Step 3: Access profile with login token
	rec := app.request("GET", "/api/v1/profile", "", loginToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	user := parseJSON(t, rec)["user"].(map[string]interface{})
	if user["email"] != "auth@test.com" || user["id"] != userID {
		t.Errorf("unexpected profile %v", user)
	}
}

func TestAuthFlow_RegisterDuplicateEmail(t *testing.T) {
	app := setupApp(t)

	app.registerUser(t, "dup@test.com", "password123")

	rec := app.request("POST", "/api/v1/auth/register",
		`{"email":"dup@test.com","password":"password123"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "DUPLICATE_EMAIL" {
		t.Errorf("expected DUPLICATE_EMAIL, got %v", code)
	}
}

func TestAuthFlow_LoginWrongPassword(t *testing.T) {
	app := setupApp(t)

	app.registerUser(t, "wrong@test.com", "password123")

	rec := app.request("POST", "/api/v1/auth/login",
		`{"email":"wrong@test.com","password":"wrongpassword"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "INVALID_CREDENTIALS" {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", code)
	}
}

func TestAuthFlow_ProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/api/v1/profile", "/api/v1/transactions", "/api/v1/analytics/home", "/api/v1/export/csv"} {
		if rec := app.request("GET", path, "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
		if rec := app.request("GET", path, "", "invalid-token"); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAuthFlow_AdminRoutesRequireKey(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "admin@test.com", "password123")

	rec := app.request("GET", "/api/v1/admin/offers", "", token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_API_KEY" {
		t.Errorf("expected INVALID_API_KEY, got %v", code)
	}

	if rec := app.adminRequest("GET", "/api/v1/admin/offers", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with API key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow_ProfilePasswordAndAccountDeletion(t *testing.T) {
	app := setupApp(t)
	token, userID := app.registerUser(t, "ada@example.com", "password123")
	food := app.createCategory(t, token, "Food")
	app.createText(t, token, `{"text":"pizza","amount":12.5,"category_id":"`+food+`"}`)

	// A second user's data must survive the deletion.
	otherToken, _ := app.registerUser(t, "grace@example.com", "password123")
	app.createText(t, otherToken, `{"text":"coffee","amount":3}`)

	rec := app.request("PUT", "/api/v1/profile", `{"first_name":"Ada","last_name":"Lovelace"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", "/api/v1/profile", "", token)
	if user := parseJSON(t, rec)["user"].(map[string]interface{}); user["last_name"] != "Lovelace" {
		t.Errorf("profile not updated: %v", user)
	}

	rec = app.request("POST", "/api/v1/auth/change-password",
		`{"current_password":"password123","new_password":"newpassword1"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/auth/login", `{"email":"ada@example.com","password":"password123"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("old password should stop working, got %d", rec.Code)
	}
	token = app.loginUser(t, "ada@example.com", "newpassword1")

	rec = app.request("DELETE", "/api/v1/account", `{"password":"password123"}`, token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("delete with stale password: expected 401, got %d", rec.Code)
	}

	rec = app.request("DELETE", "/api/v1/account", `{"password":"newpassword1"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete account: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/auth/login", `{"email":"ada@example.com","password":"newpassword1"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted account should not log in, got %d", rec.Code)
	}
	for _, table := range []string{"transactions", "categories", "audit_logs"} {
		var n int64
		if err := app.DB.Table(table).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s: expected no rows for deleted user, got %d", table, n)
		}
	}

	rec = app.request("GET", "/api/v1/transactions", "", otherToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("other user list: %d", rec.Code)
	}
	if n := len(parseJSON(t, rec)["data"].([]interface{})); n != 1 {
		t.Errorf("other user's transactions should survive, got %d", n)
	}
}
