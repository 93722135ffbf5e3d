package entity

// UserLoginData is the cashier identity carried in the access token claims.
type UserLoginData struct {
	ID       string
	Email    string
	Username string
}
