package sitecontent

import (
	"context"
	"errors"

	"lexportal-backend/internal/models"

	"gorm.io/gorm"
)

var ErrNoContent = errors.New("no website content published yet")

type Service struct {
	DB *gorm.DB
}

// Latest returns the live content snapshot (highest version number).
func (s *Service) Latest(ctx context.Context) (*models.WebsiteContent, error) {
	var content models.WebsiteContent
	err := s.DB.WithContext(ctx).Order("version_number DESC").First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoContent
	}
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// PublishVersion stores a new full snapshot. Versions are append-only so an
// edit can always be rolled back by republishing an older snapshot.
func (s *Service) PublishVersion(ctx context.Context, content models.WebsiteContent) (*models.WebsiteContent, error) {
	content.VersionNumber = 0
	if err := s.DB.WithContext(ctx).Create(&content).Error; err != nil {
		return nil, err
	}
	return &content, nil
}
