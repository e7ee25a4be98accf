package transport

import (
	"time"

	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/session"
	"github.com/Skotchmaster/sessionauth/internal/util"
)

// UserView is the only shape a user leaves the service in.
type UserView struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type TokenView struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type TokensView struct {
	Access  TokenView `json:"access"`
	Refresh TokenView `json:"refresh"`
}

type AuthResponse struct {
	User   UserView   `json:"user"`
	Tokens TokensView `json:"tokens"`
}

type TokensResponse struct {
	Tokens TokensView `json:"tokens"`
}

func User(u *models.User) UserView {
	return UserView{
		UID:   u.UID,
		Email: u.Email,
		Name:  u.Name,
	}
}

func Users(us []models.User) []UserView {
	out := make([]UserView, len(us))
	for i := range us {
		out[i] = User(&us[i])
	}
	return out
}

func UserPage(p *util.Page[models.User]) util.Page[UserView] {
	return util.Page[UserView]{
		Results:      Users(p.Results),
		Page:         p.Page,
		Limit:        p.Limit,
		TotalPages:   p.TotalPages,
		TotalResults: p.TotalResults,
	}
}

func Tokens(iss *session.Issued) TokensView {
	return TokensView{
		Access:  TokenView{Token: iss.AccessToken, Expires: iss.AccessExpires},
		Refresh: TokenView{Token: iss.RefreshToken, Expires: iss.RefreshExpires},
	}
}
