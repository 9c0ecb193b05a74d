package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	profileUC "github.com/khoahotran/openforge/internal/application/usecase/profile"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

// SessionFunc returns the wallet the gateway publishes as.
type SessionFunc func() wallet.Session

type ProfileHandler struct {
	profileUseCase *profileUC.ProfileUseCase
	resolver       *resolve.Resolver
	session        SessionFunc
	batchLimit     int
	logger         logger.Logger
}

func NewProfileHandler(uc *profileUC.ProfileUseCase, resolver *resolve.Resolver, session SessionFunc, batchConcurrency int, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: uc,
		resolver:       resolver,
		session:        session,
		batchLimit:     batchConcurrency,
		logger:         log,
	}
}

func (h *ProfileHandler) input(c *gin.Context) (profileUC.ProfileInput, error) {
	var req ProfileRequest
	if err := bindData(c, &req); err != nil {
		return profileUC.ProfileInput{}, err
	}
	avatar, err := formImage(c, "avatar")
	if err != nil {
		return profileUC.ProfileInput{}, err
	}
	return profileUC.ProfileInput{
		Session: h.session(),
		Name:    req.Name,
		Bio:     req.Bio,
		Skills:  req.Skills,
		Avatar:  avatar,
	}, nil
}

func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	in, err := h.input(c)
	if err != nil {
		c.Error(err)
		return
	}
	result, err := h.profileUseCase.ExecuteCreate(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	in, err := h.input(c)
	if err != nil {
		c.Error(err)
		return
	}
	result, err := h.profileUseCase.ExecuteUpdate(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ProfileHandler) GetCooldown(c *gin.Context) {
	cd, err := h.profileUseCase.ExecuteCooldown(c.Request.Context(), h.session())
	if err != nil {
		c.Error(err)
		return
	}
	dto := CooldownDTO{
		Active:           cd.Active(),
		PeriodSeconds:    int64(cd.Period / time.Second),
		RemainingSeconds: int64(cd.Remaining / time.Second),
	}
	if !cd.NextAllowed.IsZero() {
		dto.NextAllowed = cd.NextAllowed.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, dto)
}

func (h *ProfileHandler) GetSession(c *gin.Context) {
	ownerID, ok := GetOwnerIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewUnauthorized("missing operator identity", nil))
		return
	}
	sess := h.session()
	dto := SessionDTO{OwnerID: ownerID.String(), Connected: sess.IsConnected()}
	if addr, err := sess.Address(); err == nil {
		dto.Address = addr
		dto.ChainID = sess.ChainID()
	}
	c.JSON(http.StatusOK, dto)
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	address := c.Param("address")
	if !wallet.IsAddress(address) {
		c.Error(apperror.NewValidation("address", "not a 0x-prefixed 20 byte address"))
		return
	}
	p, err := h.resolver.ResolveProfile(c.Request.Context(), address)
	if err != nil {
		c.Error(err)
		return
	}
	if p == nil {
		c.Error(apperror.NewNotFound("profile", address))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) GetProfileLinks(c *gin.Context) {
	address := c.Param("address")
	if !wallet.IsAddress(address) {
		c.Error(apperror.NewValidation("address", "not a 0x-prefixed 20 byte address"))
		return
	}
	links, err := h.resolver.ResolveProfileLinks(c.Request.Context(), address)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// BatchProfiles resolves many addresses; addresses without a profile map
// to null.
func (h *ProfileHandler) BatchProfiles(c *gin.Context) {
	var req BatchProfilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("addresses are required", err))
		return
	}
	profiles, err := h.resolver.ResolveProfiles(c.Request.Context(), req.Addresses, h.batchLimit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
