package media

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"atlas-of-us/backend/pkg/logger"

	"go.uber.org/zap"
)

// ImageGenerator renders a prompt to image bytes
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ObjectUploader stores bytes under a key and returns a URL
type ObjectUploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// AvatarService produces a domain's avatar image and hosts it
type AvatarService struct {
	images ImageGenerator
	store  ObjectUploader
	logger *zap.Logger
}

// NewAvatarService creates a new avatar service
func NewAvatarService(images ImageGenerator, store ObjectUploader) *AvatarService {
	return &AvatarService{
		images: images,
		store:  store,
		logger: logger.Get(),
	}
}

// CreateDomainAvatar generates an icon for domainName and returns its URL
func (s *AvatarService) CreateDomainAvatar(ctx context.Context, domainName string) (string, error) {
	image, err := s.images.Generate(ctx, AvatarPrompt(domainName))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("domains/%s/avatar.png", SanitizeName(domainName))
	url, err := s.store.Upload(ctx, key, image)
	if err != nil {
		return "", err
	}

	s.logger.Info("Domain avatar stored",
		zap.String("domain", domainName),
		zap.String("url", url),
	)
	return url, nil
}

// AvatarPrompt is the image prompt for a domain icon
func AvatarPrompt(domainName string) string {
	return fmt.Sprintf(
		"A beautiful, artistic icon representing the domain of '%s'. "+
			"Clean, modern design suitable for an app avatar. "+
			"Minimalist style with vibrant colors on a simple background. "+
			"No text or words.",
		domainName,
	)
}

// SanitizeName lowercases, turns spaces into underscores and drops anything
// that is not a letter, digit or underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
