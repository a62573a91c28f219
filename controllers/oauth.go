package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"infinityschool_go/config"
	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/models"
	"infinityschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

type OAuthController struct{}

func googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.Google.ClientID,
		ClientSecret: config.AppConfig.Google.ClientSecret,
		RedirectURL:  config.AppConfig.Google.RedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
}

func githubOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.GitHub.ClientID,
		ClientSecret: config.AppConfig.GitHub.ClientSecret,
		RedirectURL:  config.AppConfig.GitHub.RedirectURI,
		Scopes:       []string{"user:email"},
		Endpoint:     github.Endpoint,
	}
}

// GoogleLogin redirects to Google's consent screen
func (oc *OAuthController) GoogleLogin(c *fiber.Ctx) error {
	state, err := utils.GenerateRandomString(32)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to start OAuth flow",
		})
	}
	setStateCookie(c, state)

	url := googleOAuthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

// GoogleCallback exchanges the code, provisions the account and hands a
// signed JWT back to the frontend.
func (oc *OAuthController) GoogleCallback(c *fiber.Ctx) error {
	if !validState(c) {
		return redirectAuthError(c)
	}

	code := c.Query("code")
	if code == "" {
		return redirectAuthError(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conf := googleOAuthConfig()
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		logrus.WithError(err).Error("Google OAuth token exchange failed")
		return redirectAuthError(c)
	}

	var profile struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		GivenName string `json:"given_name"`
		Picture   string `json:"picture"`
	}
	if err := fetchJSON(ctx, conf.Client(ctx, token), "https://www.googleapis.com/oauth2/v2/userinfo", &profile); err != nil {
		logrus.WithError(err).Error("Google OAuth userinfo fetch failed")
		return redirectAuthError(c)
	}
	if profile.Email == "" {
		return redirectAuthError(c)
	}

	fullName := profile.Name
	if fullName == "" {
		fullName = "Google User"
	}
	codeName := profile.GivenName
	if codeName == "" {
		codeName = strings.Split(profile.Email, "@")[0]
	}

	user, err := findOrCreateOAuthUser(profile.Email, fullName, codeName, "google", profile.ID, profile.Picture)
	if err != nil {
		logrus.WithError(err).Error("Google OAuth user provisioning failed")
		return redirectAuthError(c)
	}

	return redirectWithToken(c, user)
}

// GitHubLogin redirects to GitHub's authorize page
func (oc *OAuthController) GitHubLogin(c *fiber.Ctx) error {
	state, err := utils.GenerateRandomString(32)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to start OAuth flow",
		})
	}
	setStateCookie(c, state)

	return c.Redirect(githubOAuthConfig().AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// GitHubCallback exchanges the code, provisions the account and hands a
// signed JWT back to the frontend. GitHub may hide the account email; the
// emails endpoint is tried before falling back to a login-based placeholder.
func (oc *OAuthController) GitHubCallback(c *fiber.Ctx) error {
	if !validState(c) {
		return redirectAuthError(c)
	}

	code := c.Query("code")
	if code == "" {
		return redirectAuthError(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conf := githubOAuthConfig()
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		logrus.WithError(err).Error("GitHub OAuth token exchange failed")
		return redirectAuthError(c)
	}

	client := conf.Client(ctx, token)

	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON(ctx, client, "https://api.github.com/user", &profile); err != nil {
		logrus.WithError(err).Error("GitHub OAuth userinfo fetch failed")
		return redirectAuthError(c)
	}

	email := profile.Email
	if email == "" {
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := fetchJSON(ctx, client, "https://api.github.com/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary {
					email = e.Email
					break
				}
			}
		}
	}
	if email == "" {
		email = profile.Login + "@github.com"
	}

	fullName := profile.Name
	if fullName == "" {
		fullName = profile.Login
	}

	user, err := findOrCreateOAuthUser(email, fullName, profile.Login, "github", fmt.Sprintf("%d", profile.ID), profile.AvatarURL)
	if err != nil {
		logrus.WithError(err).Error("GitHub OAuth user provisioning failed")
		return redirectAuthError(c)
	}

	return redirectWithToken(c, user)
}

// findOrCreateOAuthUser resolves an account by email. An existing account is
// relinked to the provider on every login; a new one is created active with
// the default role.
func findOrCreateOAuthUser(email, fullName, codeName, provider, providerID, avatar string) (*models.User, error) {
	email = strings.ToLower(email)

	var user models.User
	err := database.DB.Where("email = ?", email).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{
			"provider":    provider,
			"provider_id": providerID,
			"avatar":      avatar,
			"full_name":   fullName,
			"code_name":   codeName,
		}
		if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}

	user = models.User{
		FullName:   fullName,
		CodeName:   codeName,
		Email:      email,
		Provider:   provider,
		ProviderID: providerID,
		Avatar:     avatar,
		Role:       "user",
		Status:     "active",
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func redirectWithToken(c *fiber.Ctx, user *models.User) error {
	token, err := middleware.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign OAuth session token")
		return redirectAuthError(c)
	}
	return c.Redirect(fmt.Sprintf("%s/?token=%s&userId=%d", config.AppConfig.FrontendURL, token, user.ID), fiber.StatusTemporaryRedirect)
}

func redirectAuthError(c *fiber.Ctx) error {
	return c.Redirect(config.AppConfig.FrontendURL+"/auth-error", fiber.StatusTemporaryRedirect)
}

func setStateCookie(c *fiber.Ctx, state string) {
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func validState(c *fiber.Ctx) bool {
	state := c.Query("state")
	cookie := c.Cookies(oauthStateCookie)
	return state != "" && state == cookie
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
