package auth

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ControllerRoutes names the HTTP surface. Paths are relative to the
// mount prefix handed to RegisterRoutes.
type ControllerRoutes struct {
	WhoAmI               string
	Register             string
	Activate             string
	Login                string
	AdminLogin           string
	Logout               string
	PasswordReset        string
	PasswordResetConfirm string
	PasswordChange       string
	Users                string
	UserByID             string
}

// Controller exposes the command handlers over fiber. Every route body is
// a thin adapter: bind, dispatch, translate the handler error.
type Controller struct {
	cfg      Config
	repo     RepositoryManager
	codec    *TokenCodec
	notifier *Notifier
	logger   Logger
	Routes   ControllerRoutes

	register      *RegisterHandler
	activate      *ActivateHandler
	login         *LoginHandler
	adminLogin    *AdminLoginHandler
	logout        *LogoutHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	changePass    *ChangePasswordHandler
	createUser    *CreateUserHandler
	updateUser    *UpdateUserHandler
}

func NewController(repo RepositoryManager, codec *TokenCodec, notifier *Notifier, cfg Config) *Controller {
	return &Controller{
		cfg:      cfg,
		repo:     repo,
		codec:    codec,
		notifier: notifier,
		logger:   defLogger{},
		Routes: ControllerRoutes{
			WhoAmI:               "/",
			Register:             "/register",
			Activate:             "/activate",
			Login:                "/login",
			AdminLogin:           "/admin/login",
			Logout:               "/logout",
			PasswordReset:        "/password_reset",
			PasswordResetConfirm: "/password_reset_confirm",
			PasswordChange:       "/password_change",
			Users:                "/users",
			UserByID:             "/users/:id",
		},
		register:      NewRegisterHandler(repo, notifier, cfg),
		activate:      NewActivateHandler(repo, notifier),
		login:         NewLoginHandler(repo, codec, cfg),
		adminLogin:    NewAdminLoginHandler(repo, codec, cfg),
		logout:        NewLogoutHandler(repo),
		resetInit:     NewInitializePasswordResetHandler(repo, notifier),
		resetFinalize: NewFinalizePasswordResetHandler(repo, notifier, cfg),
		changePass:    NewChangePasswordHandler(repo, notifier, cfg),
		createUser:    NewCreateUserHandler(repo, cfg),
		updateUser:    NewUpdateUserHandler(repo),
	}
}

func (ctrl *Controller) WithLogger(logger Logger) *Controller {
	if logger != nil {
		ctrl.logger = logger
	}
	return ctrl
}

// RegisterRoutes mounts the HTTP surface on the given router. The
// authorizer gates the routes that require a valid token; role guards
// stack on top for the administrative ones.
func (ctrl *Controller) RegisterRoutes(app fiber.Router, authorizer *Authorizer) {
	authorized := authorizer.Handler()

	app.Post(ctrl.Routes.Register, ctrl.Register)
	app.Get(ctrl.Routes.Activate, ctrl.Activate)
	app.Post(ctrl.Routes.Login, ctrl.Login)
	app.Get(ctrl.Routes.PasswordReset, ctrl.PasswordReset)
	app.Get(ctrl.Routes.PasswordResetConfirm, ctrl.PasswordResetConfirm)

	app.Get(ctrl.Routes.WhoAmI, authorized, ctrl.WhoAmI)
	app.Get(ctrl.Routes.Logout, authorized, ctrl.Logout)
	app.Post(ctrl.Routes.PasswordChange, authorized, ctrl.PasswordChange)

	app.Post(ctrl.Routes.AdminLogin, authorized, RequireAdmin(), ctrl.AdminLogin)
	app.Post(ctrl.Routes.Users, authorized, RequireSuperuser(), ctrl.CreateUser)
	app.Put(ctrl.Routes.UserByID, authorized, RequireSuperuser(), ctrl.UpdateUser)
}

// WhoAmI echoes the authorization context back to the caller.
func (ctrl *Controller) WhoAmI(c *fiber.Ctx) error {
	authCtx, ok := AuthFromFiber(c)
	if !ok {
		return ctrl.writeError(c, ErrUnauthorized)
	}
	return c.JSON(authCtx)
}

func (ctrl *Controller) Register(c *fiber.Ctx) error {
	msg := RegisterMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "failed to parse request body").
			WithTextCode(ErrInvalidParams.TextCode))
	}

	var res *RegisterResponse
	msg.OnResponse = func(resp *RegisterResponse) { res = resp }

	if err := ctrl.register.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("register failed", "email", msg.User.Email, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

func (ctrl *Controller) Activate(c *fiber.Ctx) error {
	msg := ActivateMessage{Token: c.Query("token")}

	var res *ActivateResponse
	msg.OnResponse = func(resp *ActivateResponse) { res = resp }

	if err := ctrl.activate.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("activation failed", "error", err)
		return ctrl.writeError(c, err)
	}

	if redirect := c.Query("redirect_to"); redirect != "" {
		return c.Redirect(redirect, fiber.StatusSeeOther)
	}
	return c.JSON(res)
}

func (ctrl *Controller) Login(c *fiber.Ctx) error {
	msg := LoginMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "failed to parse request body").
			WithTextCode(ErrInvalidParams.TextCode))
	}

	var res *LoginResponse
	msg.OnResponse = func(resp *LoginResponse) { res = resp }

	if err := ctrl.login.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("login failed", "email", msg.Email, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(res)
}

func (ctrl *Controller) AdminLogin(c *fiber.Ctx) error {
	msg := AdminLoginMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "failed to parse request body").
			WithTextCode(ErrInvalidParams.TextCode))
	}
	var res *LoginResponse
	msg.OnResponse = func(resp *LoginResponse) { res = resp }

	if err := ctrl.adminLogin.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("admin login failed", "email", msg.Email, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(res)
}

func (ctrl *Controller) Logout(c *fiber.Ctx) error {
	token, ok := TokenFromFiber(c)
	if !ok {
		return ctrl.writeError(c, ErrUnauthorized)
	}

	if err := ctrl.logout.Execute(c.UserContext(), LogoutMessage{Token: token}); err != nil {
		ctrl.logger.Error("logout failed", "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (ctrl *Controller) PasswordReset(c *fiber.Ctx) error {
	msg := InitializePasswordResetMessage{Email: c.Query("email")}

	var res *InitializePasswordResetResponse
	msg.OnResponse = func(resp *InitializePasswordResetResponse) { res = resp }

	if err := ctrl.resetInit.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("password reset request failed", "email", msg.Email, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(res)
}

func (ctrl *Controller) PasswordResetConfirm(c *fiber.Ctx) error {
	msg := FinalizePasswordResetMessage{Token: c.Query("token")}

	var res *FinalizePasswordResetResponse
	msg.OnResponse = func(resp *FinalizePasswordResetResponse) { res = resp }

	if err := ctrl.resetFinalize.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("password reset confirmation failed", "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(res)
}

func (ctrl *Controller) PasswordChange(c *fiber.Ctx) error {
	authCtx, ok := AuthFromFiber(c)
	if !ok || authCtx.User == nil {
		return ctrl.writeError(c, ErrUnauthorized)
	}

	msg := ChangePasswordMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "failed to parse request body").
			WithTextCode(ErrInvalidParams.TextCode))
	}
	msg.UserID = authCtx.User.ID

	var res *ChangePasswordResponse
	msg.OnResponse = func(resp *ChangePasswordResponse) { res = resp }

	if err := ctrl.changePass.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("password change failed", "user", authCtx.User.ID, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(res)
}

func (ctrl *Controller) CreateUser(c *fiber.Ctx) error {
	authCtx, ok := AuthFromFiber(c)
	if !ok || authCtx.User == nil {
		return ctrl.writeError(c, ErrUnauthorized)
	}

	msg := CreateUserMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "failed to parse request body").
			WithTextCode(ErrInvalidParams.TextCode))
	}
	// new accounts always land in the caller's organization
	msg.OrganizationID = authCtx.User.OrganizationID

	var res *User
	msg.OnResponse = func(user *User) { res = user }

	if err := ctrl.createUser.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("create user failed", "email", msg.Email, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

func (ctrl *Controller) UpdateUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "invalid user id").
			WithTextCode(ErrInvalidParams.TextCode))
	}

	msg := UpdateUserMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return ctrl.writeError(c, goerrors.Wrap(err, ErrInvalidParams.Category, "failed to parse request body").
			WithTextCode(ErrInvalidParams.TextCode))
	}
	msg.ID = id

	var res *User
	msg.OnResponse = func(user *User) { res = user }

	if err := ctrl.updateUser.Execute(c.UserContext(), msg); err != nil {
		ctrl.logger.Error("update user failed", "id", id, "error", err)
		return ctrl.writeError(c, err)
	}

	return c.JSON(res)
}

func (ctrl *Controller) writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	textCode := "INTERNAL"
	message := "internal error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			status = fiber.StatusBadRequest
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			status = fiber.StatusForbidden
		case goerrors.CategoryConflict:
			status = fiber.StatusConflict
		case goerrors.CategoryNotFound:
			status = fiber.StatusNotFound
		}
		if richErr.TextCode != "" {
			textCode = richErr.TextCode
		}
		message = richErr.Message
	}

	// internal details never leave the process
	if status == fiber.StatusInternalServerError {
		message = "internal error"
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   textCode,
		"message": message,
	})
}
