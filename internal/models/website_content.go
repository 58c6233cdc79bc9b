package models

import "time"

// WebsiteContent is a full snapshot of the public site's editable copy.
// Every edit creates a new version; the highest version number is live.
type WebsiteContent struct {
	VersionNumber uint `gorm:"column:version_number;primaryKey;autoIncrement" json:"version_number"`

	FrontPageHeader      string `gorm:"column:front_page_header" json:"front_page_header"`
	FrontPageDescription string `gorm:"column:front_page_description" json:"front_page_description"`

	StepParentAdoptionDescription   string `gorm:"column:step_parent_adoption_description" json:"step_parent_adoption_description"`
	AdultAdoptionDescription        string `gorm:"column:adult_adoption_description" json:"adult_adoption_description"`
	GuardianshipDescription         string `gorm:"column:guardianship_description" json:"guardianship_description"`
	GuardianshipToAdoptionDescription string `gorm:"column:guardianship_to_adoption_description" json:"guardianship_to_adoption_description"`
	IndependentAdoptionDescription  string `gorm:"column:independent_adoption_description" json:"independent_adoption_description"`

	NameTitle         string `gorm:"column:name_title" json:"name_title"`
	AboutMeDescription string `gorm:"column:about_me_description" json:"about_me_description"`
	OfficeLocation    string `gorm:"column:office_location" json:"office_location"`

	FooterDescription string `gorm:"column:footer_description" json:"footer_description"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (WebsiteContent) TableName() string {
	return "WebsiteContent"
}
