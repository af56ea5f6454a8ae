package cognito

type attributeType struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type codeDeliveryDetails struct {
	Destination    string `json:"Destination"`
	DeliveryMedium string `json:"DeliveryMedium"`
	AttributeName  string `json:"AttributeName"`
}

type signUpInput struct {
	ClientID       string          `json:"ClientId"`
	SecretHash     string          `json:"SecretHash,omitempty"`
	Username       string          `json:"Username"`
	Password       string          `json:"Password"`
	UserAttributes []attributeType `json:"UserAttributes,omitempty"`
}

type signUpOutput struct {
	UserConfirmed       bool                `json:"UserConfirmed"`
	UserSub             string              `json:"UserSub"`
	CodeDeliveryDetails codeDeliveryDetails `json:"CodeDeliveryDetails"`
}

type confirmSignUpInput struct {
	ClientID         string `json:"ClientId"`
	SecretHash       string `json:"SecretHash,omitempty"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
}

type initiateAuthInput struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type authenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int64  `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
}

type initiateAuthOutput struct {
	AuthenticationResult *authenticationResult `json:"AuthenticationResult"`
	ChallengeName        string                `json:"ChallengeName"`
	Session              string                `json:"Session"`
}

type usernameInput struct {
	ClientID   string `json:"ClientId"`
	SecretHash string `json:"SecretHash,omitempty"`
	Username   string `json:"Username"`
}

type deliveryOutput struct {
	CodeDeliveryDetails codeDeliveryDetails `json:"CodeDeliveryDetails"`
}

type confirmForgotPasswordInput struct {
	ClientID         string `json:"ClientId"`
	SecretHash       string `json:"SecretHash,omitempty"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
	Password         string `json:"Password"`
}

type accessTokenInput struct {
	AccessToken string `json:"AccessToken"`
}

type getUserOutput struct {
	Username       string          `json:"Username"`
	UserAttributes []attributeType `json:"UserAttributes"`
}

type errorDocument struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
	// Some emulators capitalize the field.
	MessageAlt string `json:"Message"`
}
