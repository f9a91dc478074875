package dto

// LoginForm is posted by the login page or the SPA.
type LoginForm struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	RememberMe bool   `json:"remember_me" form:"remember_me"`
	Redirect   string `json:"redirect" form:"redirect"`
}

type LoginResult struct {
	Redirect   string `json:"redirect"`
	IsEmployee bool   `json:"is_employee"`
}

type PrincipalResponse struct {
	Namespace  string `json:"namespace"`
	Subject    string `json:"subject,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	IsEmployee bool   `json:"is_employee"`
}

type SessionResponse struct {
	Authenticated    bool               `json:"authenticated"`
	Principal        *PrincipalResponse `json:"principal,omitempty"`
	ShowWelcomeToast bool               `json:"show_welcome_toast"`
	Flash            string             `json:"flash,omitempty"`
}
