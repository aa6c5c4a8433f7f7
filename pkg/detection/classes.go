package detection

import "image/color"

// Class is one of the fixed MobileNet-SSD (PASCAL VOC) labels.
// The numeric value equals the model's class index.
type Class uint8

// The 21 classes in model output order. Background is index 0.
const (
	Background Class = iota
	Aeroplane
	Bicycle
	Bird
	Boat
	Bottle
	Bus
	Car
	Cat
	Chair
	Cow
	DiningTable
	Dog
	Horse
	Motorbike
	Person
	PottedPlant
	Sheep
	Sofa
	Train
	TVMonitor

	numClasses
)

// NumClasses is the size of the class table.
const NumClasses = int(numClasses)

var classNames = [numClasses]string{
	"BACKGROUND", "AEROPLANE", "BICYCLE", "BIRD", "BOAT",
	"BOTTLE", "BUS", "CAR", "CAT", "CHAIR", "COW", "DININGTABLE",
	"DOG", "HORSE", "MOTORBIKE", "PERSON", "POTTEDPLANT", "SHEEP",
	"SOFA", "TRAIN", "TVMONITOR",
}

// classColors is a fixed palette; Person is the green used for people boxes.
var classColors = [numClasses]color.RGBA{
	Background:  {R: 0, G: 0, B: 0, A: 0},
	Aeroplane:   {R: 230, G: 25, B: 75, A: 0},
	Bicycle:     {R: 60, G: 180, B: 75, A: 0},
	Bird:        {R: 255, G: 225, B: 25, A: 0},
	Boat:        {R: 0, G: 130, B: 200, A: 0},
	Bottle:      {R: 245, G: 130, B: 48, A: 0},
	Bus:         {R: 145, G: 30, B: 180, A: 0},
	Car:         {R: 70, G: 240, B: 240, A: 0},
	Cat:         {R: 240, G: 50, B: 230, A: 0},
	Chair:       {R: 210, G: 245, B: 60, A: 0},
	Cow:         {R: 250, G: 190, B: 212, A: 0},
	DiningTable: {R: 0, G: 128, B: 128, A: 0},
	Dog:         {R: 220, G: 190, B: 255, A: 0},
	Horse:       {R: 170, G: 110, B: 40, A: 0},
	Motorbike:   {R: 255, G: 250, B: 200, A: 0},
	Person:      {R: 0, G: 255, B: 0, A: 0},
	PottedPlant: {R: 128, G: 0, B: 0, A: 0},
	Sheep:       {R: 170, G: 255, B: 195, A: 0},
	Sofa:        {R: 128, G: 128, B: 0, A: 0},
	Train:       {R: 255, G: 215, B: 180, A: 0},
	TVMonitor:   {R: 0, G: 0, B: 128, A: 0},
}

// ClassFromIndex maps a raw model class index to a Class.
// Indices outside the table report false.
func ClassFromIndex(i int) (Class, bool) {
	if i < 0 || i >= NumClasses {
		return Background, false
	}
	return Class(i), true
}

// String returns the upper-case label, e.g. "PERSON".
func (c Class) String() string {
	if int(c) >= NumClasses {
		return "UNKNOWN"
	}
	return classNames[c]
}

// Color returns the display color for the class.
func (c Class) Color() color.RGBA {
	if int(c) >= NumClasses {
		return color.RGBA{}
	}
	return classColors[c]
}
