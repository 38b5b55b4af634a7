package domain

// Ordered pipeline stage tags, used in StageError classification and progress
// logging. Within one job the stages always run in this order.
const (
	StageRecomposition     = "recomposition"
	StageBackgroundRemoval = "background_removal"
	StageNormalization     = "normalization"
	StageVerification      = "verification"
)
