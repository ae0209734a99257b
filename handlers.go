package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"accweb/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const homePath = "/"

func setupRoutes(r *gin.Engine) {
	r.GET("/", homeHandler)

	acc := r.Group("/accounts")
	acc.GET("/sign_in/", signInFormHandler)
	acc.POST("/sign_in/", signInHandler)
	acc.GET("/sign_up/", signUpFormHandler)
	acc.POST("/sign_up/", signUpHandler)
	acc.POST("/sign_out/", signOutHandler)

	gated := acc.Group("")
	gated.Use(sessionAuthMiddleware())
	gated.GET("/profile/:id/", profileHandler)
	gated.GET("/profile_create/:id/", newProfileFormHandler)
	gated.POST("/profile_create/:id/", newProfileHandler)
	gated.GET("/profile_edit/:id/", editProfileFormHandler)
	gated.POST("/profile_edit/:id/", editProfileHandler)
	gated.POST("/profile/change_password/:id/", changePasswordHandler)
}

func homeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, flashJSON(c, gin.H{"page": "home"}))
}

// pathUser resolves the :id path segment against the session user. The
// id in the URL is opaque and must belong to the session; anything else
// is forbidden rather than silently remapped.
func pathUser(c *gin.Context) (*models.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return nil, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || uint(id) != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return user, true
}

func profilePath(userID uint) string {
	return "/accounts/profile/" + strconv.FormatUint(uint64(userID), 10) + "/"
}

func profileCreatePath(userID uint) string {
	return "/accounts/profile_create/" + strconv.FormatUint(uint64(userID), 10) + "/"
}

func profileEditPath(userID uint) string {
	return "/accounts/profile_edit/" + strconv.FormatUint(uint64(userID), 10) + "/"
}

func changePasswordPath(userID uint) string {
	return "/accounts/profile/change_password/" + strconv.FormatUint(uint64(userID), 10) + "/"
}

// nextOrHome picks the redirect target after sign-in. Only local paths
// are honored so the next parameter cannot bounce off-site.
func nextOrHome(c *gin.Context) string {
	next := c.Query("next")
	if next == "" {
		next = c.PostForm("next")
	}
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return homePath
}

func signInFormHandler(c *gin.Context) {
	c.JSON(http.StatusOK, flashJSON(c, gin.H{"fields": SignInFields}))
}

func signInHandler(c *gin.Context) {
	var form SignInForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(form.Username, form.Password)
	if err != nil {
		// same page, generic message; no user/password distinction
		c.JSON(http.StatusOK, gin.H{
			"fields":   SignInFields,
			"messages": []gin.H{{"level": "error", "message": err.Error()}},
		})
		return
	}
	if err := establishSession(c, user); err != nil {
		logger.Errorw("failed to establish session", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign in failed"})
		return
	}
	c.Redirect(http.StatusFound, nextOrHome(c))
}

func signUpFormHandler(c *gin.Context) {
	c.JSON(http.StatusOK, flashJSON(c, gin.H{"fields": SignUpFields}))
}

func signUpHandler(c *gin.Context) {
	var form SignUpForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	errs := form.Validate()
	if errs.HasErrors() {
		c.JSON(http.StatusOK, gin.H{"fields": SignUpFields, "form": form, "errors": errs})
		return
	}
	user, err := RegisterUser(&form)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			errs.Add("username", err.Error())
			c.JSON(http.StatusOK, gin.H{"fields": SignUpFields, "form": form, "errors": errs})
			return
		}
		logger.Errorw("failed to create user", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign up failed"})
		return
	}
	if err := establishSession(c, user); err != nil {
		logger.Errorw("failed to establish session", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign up failed"})
		return
	}
	setFlash(c, "success", "You're now a user! You've been signed in, too.")
	c.Redirect(http.StatusFound, homePath)
}

func signOutHandler(c *gin.Context) {
	clearSession(c)
	setFlash(c, "success", "You've been signed out. Come back soon!")
	c.Redirect(http.StatusFound, homePath)
}

func profileHandler(c *gin.Context) {
	user, ok := pathUser(c)
	if !ok {
		return
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		setFlash(c, "info", "Provide more detail about yourself...")
		c.Redirect(http.StatusFound, profileCreatePath(user.ID))
		return
	}
	c.JSON(http.StatusOK, flashJSON(c, gin.H{"profile": profileJSON(user, &profile)}))
}

func profileJSON(user *models.User, profile *models.Profile) gin.H {
	return gin.H{
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"email":      user.Email,
		"birth":      profile.Birth.Format("2006-01-02"),
		"bio":        profile.Bio,
		"avatar":     profile.AvatarPath,
	}
}

func newProfileFormHandler(c *gin.Context) {
	user, ok := pathUser(c)
	if !ok {
		return
	}
	var existing models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&existing).Error; err == nil {
		c.Redirect(http.StatusFound, profileEditPath(user.ID))
		return
	}
	c.JSON(http.StatusOK, flashJSON(c, gin.H{"fields": ProfileFields}))
}

func newProfileHandler(c *gin.Context) {
	user, ok := pathUser(c)
	if !ok {
		return
	}
	var form ProfileForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	errs := form.Validate()
	avatarPath, avatarCT := "", ""
	if file, err := c.FormFile("avatar"); err == nil {
		avatarPath, avatarCT, err = saveAvatar(file)
		if err != nil {
			errs.Add("avatar", err.Error())
		}
	}
	if errs.HasErrors() {
		c.JSON(http.StatusOK, gin.H{"fields": ProfileFields, "form": form, "errors": errs})
		return
	}
	profile := models.Profile{
		UserID:            user.ID,
		Birth:             form.BirthTime(),
		Bio:               form.Bio,
		AvatarPath:        avatarPath,
		AvatarContentType: avatarCT,
	}
	if err := db.Create(&profile).Error; err != nil {
		if isUniqueConstraintError(err) {
			// one profile per user; the existing one is edited instead
			c.Redirect(http.StatusFound, profileEditPath(user.ID))
			return
		}
		logger.Errorw("failed to create profile", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create profile"})
		return
	}
	c.Redirect(http.StatusFound, profilePath(user.ID))
}

func editProfileFormHandler(c *gin.Context) {
	user, ok := pathUser(c)
	if !ok {
		return
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		// no profile yet: send to creation instead of failing the lookup
		setFlash(c, "info", "Provide more detail about yourself...")
		c.Redirect(http.StatusFound, profileCreatePath(user.ID))
		return
	}
	c.JSON(http.StatusOK, flashJSON(c, gin.H{
		"user_fields":    EditUserFields,
		"profile_fields": ProfileFields,
		"user_form":      EditUserForm{FirstName: user.FirstName, LastName: user.LastName, Email: user.Email},
		"profile_form":   ProfileForm{Birth: profile.Birth.Format("2006-01-02"), Bio: profile.Bio},
	}))
}

func editProfileHandler(c *gin.Context) {
	user, ok := pathUser(c)
	if !ok {
		return
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		setFlash(c, "info", "Provide more detail about yourself...")
		c.Redirect(http.StatusFound, profileCreatePath(user.ID))
		return
	}
	var userForm EditUserForm
	var profileForm ProfileForm
	if err := c.ShouldBind(&userForm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := c.ShouldBind(&profileForm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userErrs := userForm.Validate()
	profileErrs := profileForm.Validate()
	avatarPath, avatarCT := "", ""
	if file, err := c.FormFile("avatar"); err == nil {
		avatarPath, avatarCT, err = saveAvatar(file)
		if err != nil {
			profileErrs.Add("avatar", err.Error())
		}
	}
	if userErrs.HasErrors() || profileErrs.HasErrors() {
		c.JSON(http.StatusOK, gin.H{
			"user_fields":    EditUserFields,
			"profile_fields": ProfileFields,
			"user_form":      userForm,
			"profile_form":   profileForm,
			"user_errors":    userErrs,
			"profile_errors": profileErrs,
		})
		return
	}
	changed := userForm.Changed(user) || profileForm.Changed(&profile) || avatarPath != ""

	// user and profile commit together or not at all
	err := db.Transaction(func(tx *gorm.DB) error {
		userUpdates := map[string]interface{}{
			"first_name": userForm.FirstName,
			"last_name":  userForm.LastName,
			"email":      userForm.Email,
		}
		if err := tx.Model(user).Updates(userUpdates).Error; err != nil {
			return err
		}
		profileUpdates := map[string]interface{}{
			"birth": profileForm.BirthTime(),
			"bio":   profileForm.Bio,
		}
		if avatarPath != "" {
			profileUpdates["avatar_path"] = avatarPath
			profileUpdates["avatar_content_type"] = avatarCT
		}
		return tx.Model(&profile).Updates(profileUpdates).Error
	})
	if err != nil {
		logger.Errorw("profile edit failed", "user_id", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	if changed {
		setFlash(c, "success", "Your profile is updated!")
	} else {
		setFlash(c, "success", "No profile changes applied...")
	}
	c.Redirect(http.StatusFound, profilePath(user.ID))
}

func changePasswordHandler(c *gin.Context) {
	user, ok := pathUser(c)
	if !ok {
		return
	}
	var form PasswordChangeForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// identity containment is checked before the rule pipeline
	if containsIdentity(form.NewPassword1, user) {
		setFlash(c, "info", "Password cannot contain: Username; First Name; Last Name")
		c.Redirect(http.StatusFound, changePasswordPath(user.ID))
		return
	}
	errs := form.Validate(user)
	if errs.HasErrors() {
		c.JSON(http.StatusOK, gin.H{"fields": PasswordChangeFields, "errors": errs})
		return
	}
	if err := SetPassword(user, form.NewPassword1); err != nil {
		logger.Errorw("password update failed", "user_id", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update password"})
		return
	}
	// re-issue the session against the new hash so the user stays signed in
	if err := establishSession(c, user); err != nil {
		logger.Errorw("failed to refresh session", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update password"})
		return
	}
	setFlash(c, "success", "Your password is updated!")
	c.Redirect(http.StatusFound, homePath)
}

// identityVariants lists the user's names in submitted and case-swapped
// forms: an all-lowercase name contributes its title-cased variant,
// anything else its lowercased one.
func identityVariants(user *models.User) []string {
	names := []string{user.FirstName, user.LastName, user.Username}
	var out []string
	for _, n := range names {
		if n == "" {
			continue
		}
		out = append(out, n)
		if strings.ToLower(n) == n {
			out = append(out, titleCase(n))
		} else {
			out = append(out, strings.ToLower(n))
		}
	}
	return out
}

func containsIdentity(pw string, user *models.User) bool {
	for _, v := range identityVariants(user) {
		if strings.Contains(pw, v) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) && !prevLetter {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}
