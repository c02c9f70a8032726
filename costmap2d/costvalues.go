package costmap2d

// Cost values shared by every layer. The range 1..252 is reserved for
// inflated (distance-decayed) costs; anything at or above
// InscribedInflatedObstacle means the robot center cannot occupy the cell.
const (
	// FreeSpace marks a cell known to contain no obstacle.
	FreeSpace uint8 = 0
	// MaxNonObstacle is the highest cost the inflation decay may produce.
	MaxNonObstacle uint8 = 252
	// InscribedInflatedObstacle marks a cell closer to an obstacle than the
	// robot's inscribed radius; occupying it guarantees a collision.
	InscribedInflatedObstacle uint8 = 253
	// LethalObstacle marks a cell known to contain an obstacle.
	LethalObstacle uint8 = 254
	// NoInformation marks a cell no sensor or map has ever reported on.
	NoInformation uint8 = 255
)
